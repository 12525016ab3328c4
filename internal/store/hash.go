package store

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashContent returns the change-detection hash stored on a unit.
// Identical content always produces the same hash.
func HashContent(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
