// Package util provides utility functions for the TriagePipe application.
package util

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
// Uses math/rand/v2 for optimal performance with modern best practices.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2 with optimal entropy utilization for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length) // Pre-allocate capacity for efficiency

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateRequestID generates a unique analysis request ID in the format
// "req_{unix_millis}_{8_hex_chars}". The timestamp component keeps IDs
// roughly sortable by arrival time.
func GenerateRequestID() string {
	return "req_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + GenerateRandomHex(8)
}
