// Package protocol defines the JSON messages exchanged between clients and
// the relay: tagged requests dispatched by action code and the response
// events the server emits in return.
package protocol

import "encoding/json"

// Action identifies a client request kind. The ordinals are part of the
// wire contract and must not be renumbered.
type Action int

const (
	ActionLogin     Action = 0
	ActionRegister  Action = 1
	ActionLogout    Action = 2
	ActionMessage   Action = 3
	ActionAuthorize Action = 4
)

// Known reports whether a is one of the defined action codes. Requests
// outside this range are answered with a bare invalid response.
func (a Action) Known() bool {
	return a >= ActionLogin && a <= ActionAuthorize
}

// Event names carried in the response "event" field.
const (
	EventLogin          = "login"
	EventMessage        = "messageEvent"
	EventAuthentication = "authentication"
	EventUserInvalid    = "userInvalid"
	EventUserlistChange = "userlistChange"
)

// Request is a decoded client message. Which fields are meaningful depends
// on Action; unused fields arrive empty.
type Request struct {
	Action   Action `json:"action"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
	PubKey   string `json:"pubKey,omitempty"`
	Token    string `json:"token,omitempty"`
	Target   string `json:"target,omitempty"`
	Message  string `json:"message,omitempty"`
}

// UserInfo is one entry of the presence list advertised to clients.
type UserInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

// Response is a server-to-client message. Valid defaults to true and is
// only false for rejected or malformed requests.
type Response struct {
	Valid    bool       `json:"valid"`
	Event    string     `json:"event,omitempty"`
	Token    string     `json:"token,omitempty"`
	Username string     `json:"username,omitempty"`
	Users    []UserInfo `json:"users,omitempty"`
	Sender   string     `json:"sender,omitempty"`
	Message  string     `json:"message,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// DecodeRequest parses one framed client message.
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Encode marshals r for transmission. Marshalling these flat structs cannot
// fail, so Encode swallows the impossible error to keep call sites terse.
func (r Response) Encode() []byte {
	payload, _ := json.Marshal(r)
	return payload
}

// Invalid is the bare rejection sent for malformed or unknown requests.
func Invalid() Response {
	return Response{Valid: false}
}
