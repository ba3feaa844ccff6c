// Package session keeps short-lived conversation state for multi-step
// operator flows, keyed per actor. State expires on its own so an abandoned
// flow never blocks the next one.
package session

import (
	"context"
	"time"
)

// State is a single in-progress flow: which step the actor is on plus the
// values collected so far.
type State struct {
	Flow   string            `json:"flow"`
	Step   string            `json:"step"`
	Values map[string]string `json:"values"`
}

// Store is implemented by the Redis store and the in-memory store. Get
// returns nil without error on a miss or after expiry.
type Store interface {
	Put(ctx context.Context, actorID int64, state *State, ttl time.Duration) error
	Get(ctx context.Context, actorID int64) (*State, error)
	Delete(ctx context.Context, actorID int64) error
}
