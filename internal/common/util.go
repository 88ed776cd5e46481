package common

import "encoding/base64"

// EncodeKeySegment makes an arbitrary string safe to embed as one segment of
// a colon-delimited key.
func EncodeKeySegment(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
