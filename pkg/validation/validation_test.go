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

package validation

import (
	"strings"
	"testing"
)

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		// Valid labels
		{"empty", "", false},
		{"simple", "alice", false},
		{"with spaces", "alice right index", false},
		{"punctuation", "user-42 (left thumb)", false},
		{"unicode", "jürgen 指紋", false},
		{"max length", strings.Repeat("a", MaxLabelLength), false},

		// Invalid labels
		{"too long", strings.Repeat("a", MaxLabelLength+1), true},
		{"null byte", "ali\x00ce", true},
		{"newline", "alice\nbob", true},
		{"tab", "alice\tbob", true},
		{"escape sequence", "\x1b[31malice", true},
		{"delete", "alice\x7f", true},
		{"c1 control", "alice\u0085", true},
		{"invalid utf8", "alice\xff", true},
		{"leading space", " alice", true},
		{"trailing space", "alice ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabel(%q) error = %v, wantErr %v", tt.label, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal string", "normal log message", "normal log message"},
		{"with newline", "line1\nline2", "line1line2"},
		{"with carriage return", "line1\rline2", "line1line2"},
		{"with tab", "col1\tcol2", "col1col2"},
		{"with null byte", "before\x00after", "beforeafter"},
		{"with delete", "before\x7fafter", "beforeafter"},
		{"log injection attempt", "user\n[ERROR] fake entry", "user[ERROR] fake entry"},
		{"unicode kept", "指紋", "指紋"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeForLog(tt.input); got != tt.want {
				t.Errorf("SanitizeForLog(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeForLog_Truncates(t *testing.T) {
	got := SanitizeForLog(strings.Repeat("x", 1500))
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Errorf("SanitizeForLog() did not truncate")
	}
	if len(got) != 1000+len("...[truncated]") {
		t.Errorf("SanitizeForLog() length = %d", len(got))
	}
}
