package auth

import "crypto/subtle"

// TokenAuth validates bearer tokens against a static list.
type TokenAuth struct {
	tokens [][]byte
}

// NewTokenAuth creates a TokenAuth from a list of valid tokens. Blank tokens are ignored.
func NewTokenAuth(tokens []string) *TokenAuth {
	a := &TokenAuth{}
	for _, t := range tokens {
		if t != "" {
			a.tokens = append(a.tokens, []byte(t))
		}
	}
	return a
}

// ValidateToken returns true if the token is in the allowed list.
func (a *TokenAuth) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	candidate := []byte(token)
	ok := 0
	for _, t := range a.tokens {
		ok |= subtle.ConstantTimeCompare(t, candidate)
	}
	return ok == 1
}

// Enabled reports whether any token is configured. Without tokens the
// mutating routes are open.
func (a *TokenAuth) Enabled() bool {
	return len(a.tokens) > 0
}
