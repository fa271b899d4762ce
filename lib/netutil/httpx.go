// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds HTTP helpers shared by the proxy and the shim.
//
// Body reads are bounded by MaxResponseSize so a misbehaving peer cannot
// exhaust memory. Streaming responses (MCP event streams) are copied
// incrementally and do not go through these helpers.
package netutil

import (
	"io"
	"mime"
)

// MaxResponseSize bounds JSON response reads. Tool output is already
// capped by the proxy, so this only guards against a broken peer.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// IsJSONContentType reports whether a Content-Type header value names
// application/json, ignoring parameters such as charset.
func IsJSONContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
