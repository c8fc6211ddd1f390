package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	req := require.New(t)
	bucket := newTokenBucket(3, time.Hour)

	req.True(bucket.allow())
	req.True(bucket.allow())
	req.True(bucket.allow())
	req.False(bucket.allow(), "burst exhausted")
}

func TestTokenBucketRefills(t *testing.T) {
	req := require.New(t)
	bucket := newTokenBucket(2, 100*time.Millisecond)

	req.True(bucket.allow())
	req.True(bucket.allow())
	req.False(bucket.allow())

	time.Sleep(120 * time.Millisecond)
	req.True(bucket.allow(), "tokens refill over the interval")
}

func TestTokenBucketSanitizesBadParameters(t *testing.T) {
	bucket := newTokenBucket(0, 0)
	require.True(t, bucket.allow())
}
