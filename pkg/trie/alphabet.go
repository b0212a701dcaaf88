// ABOUTME: Token alphabet definition and validation
// ABOUTME: Restricts trie tokens to a fixed character set

package trie

import (
	"fmt"
)

// Alphabet is the fixed character set tokens are drawn from.
// The zero value rejects every character; construct with NewAlphabet.
type Alphabet struct {
	chars string
	valid [256]bool
}

// Predefined alphabets for the grid systems the index is used with.
var (
	// Hex covers padded hexadecimal cell tokens (fan-out 4 hierarchies).
	Hex = NewAlphabet("0123456789abcdef")

	// GeohashBase32 covers geohash tokens (fan-out 32 hierarchies).
	GeohashBase32 = NewAlphabet("0123456789bcdefghjkmnpqrstuvwxyz")
)

// NewAlphabet builds an alphabet from the given characters.
// Duplicate characters are tolerated.
func NewAlphabet(chars string) *Alphabet {
	a := &Alphabet{chars: chars}
	for i := 0; i < len(chars); i++ {
		a.valid[chars[i]] = true
	}
	return a
}

// Contains reports whether c is a member of the alphabet.
func (a *Alphabet) Contains(c byte) bool {
	return a.valid[c]
}

// Validate checks every character of token for alphabet membership.
// The returned error wraps ErrInvalidToken and names the first
// offending character and its position.
func (a *Alphabet) Validate(token string) error {
	for i := 0; i < len(token); i++ {
		if !a.valid[token[i]] {
			return fmt.Errorf("%w: character %q at position %d not in alphabet %q",
				ErrInvalidToken, token[i], i, a.chars)
		}
	}
	return nil
}

// Len returns the number of distinct characters in the alphabet.
func (a *Alphabet) Len() int {
	n := 0
	for _, ok := range a.valid {
		if ok {
			n++
		}
	}
	return n
}

// String returns the alphabet's characters in construction order.
func (a *Alphabet) String() string {
	return a.chars
}
