package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantPrefix string
		wantLength int // expected total length: prefix + hexLength
	}{
		{
			name:       "fingerprint-sized ID",
			prefix:     "fp_",
			hexLength:  16,
			wantPrefix: "fp_",
			wantLength: 19, // 3 + 16
		},
		{
			name:       "custom prefix",
			prefix:     "test_",
			hexLength:  32,
			wantPrefix: "test_",
			wantLength: 37, // 5 + 32
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)

			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.wantPrefix)
			}

			if len(got) != tt.wantLength {
				t.Errorf("GenerateRandomID() length = %v, want %v", len(got), tt.wantLength)
			}

			// Check that the hex part is valid
			hexPart := got[len(tt.wantPrefix):]
			if !isValidHex(hexPart) {
				t.Errorf("GenerateRandomID() hex part = %v is not valid hex", hexPart)
			}
		})
	}
}

func TestGenerateRandomHex(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"small length", 8, 8},
		{"medium length", 16, 16},
		{"large length", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomHex(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomHex() length = %v, want %v", len(got), tt.want)
			}

			if tt.want > 0 && !isValidHex(got) {
				t.Errorf("GenerateRandomHex() = %v is not valid hex", got)
			}
		})
	}
}

func TestGenerateRequestID(t *testing.T) {
	got := GenerateRequestID()

	if !strings.HasPrefix(got, "req_") {
		t.Errorf("GenerateRequestID() = %v, want prefix req_", got)
	}

	parts := strings.Split(got, "_")
	if len(parts) != 3 {
		t.Fatalf("GenerateRequestID() = %v, want three underscore-separated parts", got)
	}

	// Middle part is a millisecond timestamp, digits only
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			t.Errorf("GenerateRequestID() timestamp part = %v is not numeric", parts[1])
			break
		}
	}

	if len(parts[2]) != 8 || !isValidHex(parts[2]) {
		t.Errorf("GenerateRequestID() random part = %v, want 8 hex chars", parts[2])
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Errorf("GenerateRequestID() generated duplicate: %v", id)
		}
		seen[id] = true
	}
}

func TestRandomHexUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		hex := GenerateRandomHex(16)
		if seen[hex] {
			t.Errorf("GenerateRandomHex() generated duplicate: %v", hex)
		}
		seen[hex] = true
	}
}

// Helper function to validate hex strings
func isValidHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
