package chat

import "unicode/utf16"

// AvatarSet is a fixed ordered list of avatar names.
type AvatarSet []string

// DefaultAvatars are the NES characters the web client shipped with.
var DefaultAvatars = AvatarSet{"mario", "ash", "pokeball", "bulbasaur", "charmander", "squirtle", "kirby"}

// Pick maps a sender to one avatar of the set. The result depends only on
// the sender string, so a sender keeps its avatar for the whole session.
func (s AvatarSet) Pick(sender string) string {
	if len(s) == 0 {
		return ""
	}
	return s[avatarIndex(sender, len(s))]
}

// avatarIndex hashes UTF-16 code units, as the web client's charCodeAt
// loop does, so senders outside the BMP land on the same avatar there.
func avatarIndex(sender string, n int) int {
	var h int32
	for _, c := range utf16.Encode([]rune(sender)) {
		h = h*31 + int32(c)
	}
	idx := int(h) % n
	if idx < 0 {
		idx = -idx
	}
	return idx
}
