package models

// ContentToken is the per-chapter content-access credential mined out of a
// ticket payload. Ephemeral: consumed by the content fetch and never stored.
type ContentToken struct {
	Value     string // the access value itself
	JWTShaped bool   // three base64url segments separated by dots
	DirectURL string // set when the token was found inside a full content URL
}

// Found reports whether extraction produced anything usable.
func (t ContentToken) Found() bool {
	return t.Value != "" || t.DirectURL != ""
}
