// Package hash computes stable 64-bit identifiers for register entries.
//
// Streams negotiated with the Identifier encoding do not transmit register
// handles; peers resolve entries through a globally-unique identifier instead.
// ID derives such an identifier from an entry's unique name.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}
