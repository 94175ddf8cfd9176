package sidecar

import "strings"

// ExtractPairingCode pulls a six-digit pairing code out of one line of daemon
// output. Two shapes are recognized: an explicit "X-Pairing-Code: 123456"
// echo, and a bare six-digit run inside the boxed startup banner. Lines
// without box-drawing characters are never scanned for bare digit runs, so
// timestamps and ports do not false-positive.
func ExtractPairingCode(line string) string {
	if idx := strings.Index(line, "X-Pairing-Code:"); idx >= 0 {
		tail := line[idx+len("X-Pairing-Code:"):]
		var digits strings.Builder
		started := false
		for _, ch := range tail {
			if ch >= '0' && ch <= '9' {
				started = true
				digits.WriteRune(ch)
				continue
			}
			if started {
				break
			}
		}
		if digits.Len() == 6 {
			return digits.String()
		}
	}

	if !strings.ContainsRune(line, '│') {
		return ""
	}

	var run strings.Builder
	for _, ch := range line {
		if ch >= '0' && ch <= '9' {
			run.WriteRune(ch)
			if run.Len() == 6 {
				return run.String()
			}
		} else {
			run.Reset()
		}
	}
	return ""
}
