// Package imageref handles image references: inline data URLs and remote
// http(s) URLs.
package imageref

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrNotInline = errors.New("not an inline image reference")

// Encode builds a base64 data URL
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsInline reports whether ref is a data URL
func IsInline(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// Decode splits a base64 data URL into its media type and payload
func Decode(ref string) (string, []byte, error) {
	if !IsInline(ref) {
		return "", nil, ErrNotInline
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}
