package sidecar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPairingCodeExplicitHeader(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"X-Pairing-Code: 123456", "123456"},
		{"2026-01-01 12:00:00 INFO X-Pairing-Code:   987654  ", "987654"},
		{"X-Pairing-Code: 12345", ""},
		{"X-Pairing-Code: 1234567", ""},
		{"X-Pairing-Code: none", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractPairingCode(tt.line), "line %q", tt.line)
	}
}

func TestExtractPairingCodeBoxedBanner(t *testing.T) {
	assert.Equal(t, "482913",
		ExtractPairingCode("│   One-time pairing code: 482913  │"))

	// Without box-drawing characters a bare digit run is ignored; ports and
	// timestamps would otherwise match.
	assert.Empty(t, ExtractPairingCode("listening on http://127.0.0.1:428133"))
	assert.Empty(t, ExtractPairingCode("│ listening on port 3000 │"))

	// Runs shorter than six digits never match even inside a box.
	assert.Empty(t, ExtractPairingCode("│ code 12345 │"))
}

func TestExtractPairingCodeSplitRuns(t *testing.T) {
	// Digits interrupted by other characters restart the run.
	assert.Equal(t, "654321", ExtractPairingCode("│ 123-456 654321 │"))
}
