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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/service"
)

const testCodes = "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20,21,22,23,24,25,26,27,28,29,30"

type enrollOutput struct {
	ID       string `json:"id"`
	Secret   uint32 `json:"secret"`
	Field    string `json:"field"`
	Features int    `json:"features"`
}

type openOutput struct {
	ID         string `json:"id"`
	Secret     uint32 `json:"secret"`
	Count      int    `json:"count"`
	Iterations int    `json:"iterations"`
}

// testEnv writes a config with cheap decoding and key derivation and
// returns the global flags pointing at it.
func testEnv(t *testing.T) []string {
	t.Helper()
	t.Setenv("FUZZYVAULT_PASSPHRASE", "")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fuzzyvault.yaml")
	content := `
vault:
  width: 300
  height: 400
  dpi: 500
  iterations: 2000
decoder:
  workers: 2
kdf:
  time: 1
  memory: 8192
  threads: 1
ratelimit:
  enabled: false
metrics:
  enabled: false
rng:
  mode: software
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	return []string{"--config", cfgPath, "--data-dir", filepath.Join(dir, "vaults")}
}

func run(t *testing.T, env []string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(NewConfig())
	cmd.SetArgs(append(append([]string{}, env...), args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func enroll(t *testing.T, env []string, args ...string) enrollOutput {
	t.Helper()
	out, _, err := run(t, env, "", append([]string{"enroll", "-o", "json"}, args...)...)
	require.NoError(t, err)
	var res enrollOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// minutiaeTemplate lays out minutiae 60 pixels apart so each one lands on
// its own grid point.
func minutiaeTemplate(rows, cols int) string {
	var b strings.Builder
	b.WriteString("minutiae:\n")
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fmt.Fprintf(&b, "  - {x: %d, y: %d, angle: %.2f, quality: %d}\n",
				30+60*c, 30+60*r, 0.3*float64(r+c), 100-r*cols-c)
		}
	}
	return b.String()
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, nil, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fuzzyvault version "+Version)

	out, _, err = run(t, nil, "", "version", "-o", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestParams(t *testing.T) {
	env := testEnv(t)

	out, _, err := run(t, env, "", "params", "-o", "json")
	require.NoError(t, err)
	var p struct {
		Params struct {
			Width      int    `json:"width"`
			GridDist   int    `json:"grid_dist"`
			Iterations uint32 `json:"iterations"`
		} `json:"params"`
		Features int    `json:"features"`
		Field    string `json:"field"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 300, p.Params.Width)
	assert.Equal(t, 25, p.Params.GridDist)
	assert.Equal(t, uint32(2000), p.Params.Iterations)
	assert.Greater(t, p.Features, 5000)
	assert.NotEmpty(t, p.Field)

	out, _, err = run(t, env, "", "params", "--dpi", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "@ 1000 dpi")
	assert.Contains(t, out, "Grid:         51 px")

	_, _, err = run(t, env, "", "params", "--dpi", "100")
	assert.Error(t, err)
}

func TestEnrollOpen_Codes(t *testing.T) {
	env := testEnv(t)

	enrolled := enroll(t, env, "--codes", testCodes, "--label", "alice")
	_, err := uuid.Parse(enrolled.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enrolled.Field)

	out, _, err := run(t, env, "", "open", enrolled.ID, "--codes", testCodes, "--seed", "7", "-o", "json")
	require.NoError(t, err)
	var opened openOutput
	require.NoError(t, json.Unmarshal([]byte(out), &opened))
	assert.Equal(t, enrolled.Secret, opened.Secret)
	assert.Equal(t, 2000, opened.Iterations)
	assert.Equal(t, 2000, opened.Count)

	// Seeded decoding is reproducible
	again, _, err := run(t, env, "", "open", enrolled.ID, "--codes", testCodes, "--seed", "7", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, out, again)

	out, _, err = run(t, env, "", "info", enrolled.ID, "-o", "json")
	require.NoError(t, err)
	var info service.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "alice", info.Label)
	assert.True(t, info.Enrolled)
	assert.False(t, info.Encrypted)

	out, _, err = run(t, env, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, enrolled.ID+" (alice)")

	out, _, err = run(t, env, "", "list", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, enrolled.ID)

	out, _, err = run(t, env, "", "delete", enrolled.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	out, _, err = run(t, env, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No vaults found")

	_, _, err = run(t, env, "", "info", enrolled.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestEnrollOpen_Minutiae(t *testing.T) {
	env := testEnv(t)
	path := writeTemplate(t, minutiaeTemplate(5, 6))

	enrolled := enroll(t, env, "--features", path)

	out, _, err := run(t, env, "", "open", enrolled.ID, "--features", path, "-o", "json")
	require.NoError(t, err)
	var opened openOutput
	require.NoError(t, json.Unmarshal([]byte(out), &opened))
	assert.Equal(t, enrolled.Secret, opened.Secret)

	// Template from stdin
	out, _, err = run(t, env, minutiaeTemplate(5, 6), "open", enrolled.ID, "--features", "-")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Secret: %d", enrolled.Secret))
}

func TestEncryptDecrypt(t *testing.T) {
	env := testEnv(t)
	enrolled := enroll(t, env, "--codes", testCodes)

	out, _, err := run(t, env, "correct horse\n", "encrypt", enrolled.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "encrypted")

	out, _, err = run(t, env, "", "info", enrolled.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Encrypted:    true")

	_, _, err = run(t, env, "", "open", enrolled.ID, "--codes", testCodes)
	assert.Error(t, err)

	passFile := filepath.Join(t.TempDir(), "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("correct horse\n"), 0600))
	_, _, err = run(t, env, "", "decrypt", enrolled.ID, "--passphrase-file", passFile)
	require.NoError(t, err)

	out, _, err = run(t, env, "", "open", enrolled.ID, "--codes", testCodes, "-o", "json")
	require.NoError(t, err)
	var opened openOutput
	require.NoError(t, json.Unmarshal([]byte(out), &opened))
	assert.Equal(t, enrolled.Secret, opened.Secret)
}

func TestEncrypt_PassphraseFromEnv(t *testing.T) {
	env := testEnv(t)
	enrolled := enroll(t, env, "--codes", testCodes)

	t.Setenv("FUZZYVAULT_PASSPHRASE", "from-env")
	_, _, err := run(t, env, "", "encrypt", enrolled.ID)
	require.NoError(t, err)

	_, _, err = run(t, env, "", "decrypt", enrolled.ID)
	require.NoError(t, err)

	t.Setenv("FUZZYVAULT_PASSPHRASE", "")
	_, _, err = run(t, env, "", "encrypt", enrolled.ID)
	assert.Error(t, err, "empty stdin must not be accepted as passphrase")
}

func TestCommandErrors(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown output format", []string{"list", "-o", "xml"}},
		{"enroll without template", []string{"enroll"}},
		{"enroll with both inputs", []string{"enroll", "--codes", "1,2", "--features", "x.yaml"}},
		{"enroll missing file", []string{"enroll", "--features", "/nonexistent/template.yaml"}},
		{"enroll too few codes", []string{"enroll", "--codes", "1,2,3"}},
		{"open invalid id", []string{"open", "not-a-uuid", "--codes", testCodes}},
		{"open unknown vault", []string{"open", uuid.NewString(), "--codes", testCodes}},
		{"open missing id", []string{"open", "--codes", testCodes}},
		{"delete unknown vault", []string{"delete", uuid.NewString()}},
		{"unknown backend", []string{"list", "--backend", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, env, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMemoryBackend(t *testing.T) {
	env := append(testEnv(t), "--backend", "memory")
	out, _, err := run(t, env, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No vaults found")
}

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		minutiae int
		codes    int
		wantErr  bool
	}{
		{"yaml codes", "codes: [1, 2, 3]", 0, 3, false},
		{"json codes", `{"codes": [4, 5]}`, 0, 2, false},
		{"json minutiae", `{"minutiae": [{"x": 1, "y": 2, "angle": 0.5, "quality": 9}]}`, 1, 0, false},
		{"both", "codes: [1]\nminutiae: [{x: 1, y: 1}]", 0, 0, true},
		{"empty", "{}", 0, 0, true},
		{"malformed", "codes: [1,", 0, 0, true},
		{"negative code", "codes: [-1]", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ff, err := parseFeatures([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ff.Minutiae, tt.minutiae)
			assert.Len(t, ff.Codes, tt.codes)
		})
	}
}

func TestHandleError(t *testing.T) {
	var buf bytes.Buffer
	handleError(&Config{OutputFormat: "json"}, &buf, fmt.Errorf("boom"))
	assert.JSONEq(t, `{"status": "error", "error": "boom"}`, buf.String())

	buf.Reset()
	handleError(&Config{OutputFormat: "bogus"}, &buf, fmt.Errorf("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestStatus(t *testing.T) {
	env := testEnv(t)
	enroll(t, env, "--codes", testCodes)

	out, _, err := run(t, env, "", "status", "--selftest", "-o", "json")
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name    string `json:"name"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", report.Status)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "rng", report.Checks[0].Name)
	assert.Equal(t, "selftest", report.Checks[1].Name)
	assert.Equal(t, "storage", report.Checks[2].Name)
	assert.Equal(t, "1 vaults", report.Checks[2].Message)

	out, _, err = run(t, env, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: healthy")
	assert.NotContains(t, out, "selftest")
}
