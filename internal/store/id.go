package store

import "github.com/oklog/ulid/v2"

// NewID returns a new transaction id. ULIDs from one process are strictly
// increasing, so ordering by id is ordering by creation.
func NewID() string {
	return ulid.Make().String()
}
