// Package store persists registered accounts. The relay core only depends
// on the AccountStore contract; the badger implementation lives alongside it.
package store

import "errors"

// Record is the persisted shape of a registered account. Session state
// (token, activity, connection) is ephemeral and never stored.
type Record struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CredentialHash string `json:"credentialHash"`
}

// ErrNameTaken is returned by Insert when an account with the same name,
// compared case-insensitively, already exists.
var ErrNameTaken = errors.New("store: account name already taken")

// AccountStore is the persistence collaborator for registered accounts.
type AccountStore interface {
	// LoadAll returns every persisted account. Called once at startup.
	LoadAll() ([]Record, error)

	// Insert persists a new account, failing with ErrNameTaken on a
	// case-insensitive name conflict.
	Insert(rec Record) error

	// Close releases the underlying storage.
	Close() error
}
