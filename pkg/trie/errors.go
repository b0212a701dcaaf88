// ABOUTME: Error definitions for the token trie
// ABOUTME: Sentinel errors wrapped with context by Insert

package trie

import "errors"

var (
	// ErrInvalidToken indicates a token containing a character outside
	// the trie's alphabet was passed to Insert.
	ErrInvalidToken = errors.New("trie: token contains character outside alphabet")

	// ErrTokenTooLong indicates a token exceeding the configured
	// maximum length was passed to Insert.
	ErrTokenTooLong = errors.New("trie: token exceeds maximum length")
)
