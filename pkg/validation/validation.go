// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package validation checks user supplied vault metadata before it is
// stored or logged.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLabelLength is the longest label accepted, in bytes.
const MaxLabelLength = 128

// ValidateLabel validates a vault label. Empty labels are allowed.
// Prevents log and terminal injection by:
// - Rejecting invalid UTF-8
// - Rejecting null bytes and other control characters
// - Enforcing a length limit
func ValidateLabel(label string) error {
	if label == "" {
		return nil
	}

	// Check length before scanning
	if len(label) > MaxLabelLength {
		return fmt.Errorf("label too long (max %d bytes)", MaxLabelLength)
	}

	if !utf8.ValidString(label) {
		return fmt.Errorf("label is not valid UTF-8")
	}

	if strings.Contains(label, "\x00") {
		return fmt.Errorf("label contains null byte")
	}

	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("label contains control characters")
		}
	}

	if strings.TrimSpace(label) != label {
		return fmt.Errorf("label has leading or trailing whitespace")
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}
