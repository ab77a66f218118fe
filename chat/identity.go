package chat

import "github.com/samber/lo"

const identityPrefix = "user-"

var identityCharset = append(append([]rune{}, lo.LowerCaseLettersCharset...), lo.NumbersCharset...)

// Identity tags outbound messages and filters our own echoes out of the
// inbound stream.
type Identity string

// NewIdentity returns a random "user-xxxxxxxxx" token. Uniqueness across
// sessions is only as good as the random source.
func NewIdentity() Identity {
	return Identity(identityPrefix + lo.RandomString(9, identityCharset))
}

func (id Identity) String() string { return string(id) }
