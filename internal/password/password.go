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

// Package password holds vault passphrases in memory and reads them from
// files, readers or the environment.
//
// A ClearPassword copies its input and can be zeroed once the vault has
// been encrypted or decrypted.
package password

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
)

// EnvPassphrase names the environment variable read by FromEnv.
const EnvPassphrase = "FUZZYVAULT_PASSPHRASE"

var (
	// ErrEmptyPassword is returned when an empty password is provided.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordZeroed is returned when the password has been zeroed.
	ErrPasswordZeroed = errors.New("password has been zeroed")
)

// ClearPassword stores a password in memory as cleartext.
type ClearPassword struct {
	password []byte
}

// NewClearPassword creates a new cleartext password stored in memory.
//
// The provided byte slice is copied to prevent external modification.
// Returns an error if the password is empty.
func NewClearPassword(password []byte) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	p := make([]byte, len(password))
	copy(p, password)
	return &ClearPassword{password: p}, nil
}

// NewClearPasswordFromString creates a new cleartext password from a string.
func NewClearPasswordFromString(password string) (*ClearPassword, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	return &ClearPassword{password: []byte(password)}, nil
}

// Read takes the first line of r as the password. A trailing carriage
// return or newline is not part of it.
func Read(r io.Reader) (*ClearPassword, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	defer clear(line)
	return NewClearPassword(bytes.TrimRight(line, "\r\n"))
}

// ReadFile reads the password from the first line of a file.
func ReadFile(path string) (*ClearPassword, error) {
	// #nosec G304 - Password file path is provided by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open password file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// FromEnv reads the password from FUZZYVAULT_PASSPHRASE.
func FromEnv() (*ClearPassword, error) {
	return NewClearPasswordFromString(os.Getenv(EnvPassphrase))
}

// String returns the password as a string.
func (p *ClearPassword) String() (string, error) {
	if p.password == nil {
		return "", ErrPasswordZeroed
	}
	return string(p.password), nil
}

// Bytes returns a copy of the password.
func (p *ClearPassword) Bytes() ([]byte, error) {
	if p.password == nil {
		return nil, ErrPasswordZeroed
	}
	result := make([]byte, len(p.password))
	copy(result, p.password)
	return result, nil
}

// Clear zeroes the password. Subsequent calls to String or Bytes return
// ErrPasswordZeroed.
func (p *ClearPassword) Clear() {
	if p.password != nil {
		clear(p.password)
		subtle.ConstantTimeCopy(1, p.password, make([]byte, len(p.password)))
		p.password = nil
	}
}

// Equal compares two passwords in constant time.
func Equal(a, b *ClearPassword) (bool, error) {
	if a.password == nil || b.password == nil {
		return false, ErrPasswordZeroed
	}
	return subtle.ConstantTimeCompare(a.password, b.password) == 1, nil
}
