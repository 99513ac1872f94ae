package checklist

import (
	"strconv"
	"unicode/utf16"

	"visadoc-backend/internal/analysis"
)

// KeyPrefix is prepended to every fingerprint to form the storage key.
const KeyPrefix = "checklist_status_"

// Fingerprint hashes documentText followed by the situation id with a 32-bit
// rolling hash (h = h*31 + c over UTF-16 code units), returning the absolute
// value in base 36. Keys match those written by the browser client.
func Fingerprint(documentText string, situation analysis.Situation) string {
	var h int32
	for _, c := range utf16.Encode([]rune(documentText + string(situation))) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// Key returns the storage key for a fingerprint.
func Key(fingerprint string) string {
	return KeyPrefix + fingerprint
}
