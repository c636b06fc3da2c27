package queue

import "github.com/cockroachdb/errors"

// errInvariant builds the cursor-invariant violation error.
func errInvariant(cursor, length int) error {
	return errors.Newf("queue invariant violated: cursor %d with %d items", cursor, length)
}
