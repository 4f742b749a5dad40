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

package vault

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/chacha20"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/kdf"
)

const (
	saltSize  = 16
	nonceSize = chacha20.NonceSizeX
	keySize   = chacha20.KeySize
)

// envelope holds the encrypted coefficients of the vault polynomial. The
// plaintext packs count coefficients of d bits each, most significant bit
// first, and fills the bits left in the last byte at random. Every
// plaintext bit is thus uniform to a guesser and a decryption with a wrong
// passphrase cannot be told apart from the right one.
type envelope struct {
	salt       [saltSize]byte
	nonce      [nonceSize]byte
	count      int
	ciphertext []byte
}

func (e *envelope) wipe() {
	clear(e.salt[:])
	clear(e.nonce[:])
	clear(e.ciphertext)
	e.ciphertext = nil
}

func (e *envelope) equal(o *envelope) bool {
	return e.salt == o.salt && e.nonce == o.nonce && e.count == o.count &&
		bytes.Equal(e.ciphertext, o.ciphertext)
}

func (e *envelope) clone() *envelope {
	c := *e
	c.ciphertext = bytes.Clone(e.ciphertext)
	return &c
}

// Encrypt encrypts the locked polynomial with a key derived from
// passphrase by Argon2id. The cipher is unauthenticated: decrypting with
// the wrong passphrase yields a well-formed vault that fails to open.
func (v *Vault) Encrypt(passphrase []byte) error {
	const op = "Encrypt"

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case !v.enrolled:
		return opError(op, ErrNotEnrolled)
	case v.encrypted:
		return opError(op, ErrStillEncrypted)
	case len(passphrase) == 0:
		return errorf(op, "%w: empty passphrase", ErrInvalidParameters)
	}

	resolver, release, err := v.resolver()
	if err != nil {
		return opError(op, err)
	}
	defer release()

	degree := v.field.Degree()
	env := &envelope{
		count:      len(v.coeffs),
		ciphertext: make([]byte, packedSize(len(v.coeffs), degree)),
	}
	var pad [1]byte
	for _, b := range [][]byte{env.salt[:], env.nonce[:], pad[:]} {
		if _, err := resolver.Read(b); err != nil {
			return opError(op, err)
		}
	}
	packBits(env.ciphertext, v.coeffs, degree, pad[0])
	if err := v.xorKeyStream(env, passphrase); err != nil {
		env.wipe()
		return opError(op, err)
	}

	clear(v.coeffs)
	v.coeffs = nil
	v.sealed = env
	v.encrypted = true

	v.opts.logger.Debug("encrypted vault", "coefficients", env.count)
	return nil
}

// Decrypt restores the locked polynomial. Any passphrase is accepted;
// the wrong one yields other field elements and opening the vault then
// fails to recover the secret.
func (v *Vault) Decrypt(passphrase []byte) error {
	const op = "Decrypt"

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case !v.encrypted:
		return opError(op, ErrNotEncrypted)
	case len(passphrase) == 0:
		return errorf(op, "%w: empty passphrase", ErrInvalidParameters)
	}

	plain := v.sealed.clone()
	defer plain.wipe()
	if err := v.xorKeyStream(plain, passphrase); err != nil {
		return opError(op, err)
	}

	coeffs := unpackBits(plain.ciphertext, plain.count, v.field.Degree())

	v.sealed.wipe()
	v.sealed = nil
	v.coeffs = coeffs
	v.encrypted = false
	return nil
}

// xorKeyStream applies the XChaCha20 keystream keyed by passphrase and the
// envelope salt to the envelope contents in place.
func (v *Vault) xorKeyStream(env *envelope, passphrase []byte) error {
	key, err := kdf.NewArgon2id().DeriveKey(passphrase, v.opts.kdfCost.Params(env.salt[:], keySize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	defer clear(key)

	cipher, err := chacha20.NewUnauthenticatedCipher(key, env.nonce[:])
	if err != nil {
		return err
	}
	cipher.XORKeyStream(env.ciphertext, env.ciphertext)
	return nil
}

// packedSize returns the bytes needed for count values of degree bits.
func packedSize(count, degree int) int {
	return (count*degree + 7) / 8
}

// packBits writes the low degree bits of each coefficient into dst, most
// significant bit first. The unused low bits of the last byte are taken
// from pad.
func packBits(dst []byte, coeffs []gf.Elem, degree int, pad byte) {
	var (
		acc   uint64
		nbits int
		i     int
	)
	for _, c := range coeffs {
		acc = acc<<degree | uint64(c)&(1<<degree-1)
		nbits += degree
		for nbits >= 8 {
			nbits -= 8
			dst[i] = byte(acc >> nbits)
			i++
		}
		acc &= 1<<nbits - 1
	}
	if nbits > 0 {
		free := 8 - nbits
		dst[i] = byte(acc<<free) | pad&(1<<free-1)
	}
}

// unpackBits reads count values of degree bits from src.
func unpackBits(src []byte, count, degree int) []gf.Elem {
	out := make([]gf.Elem, count)
	var (
		acc   uint64
		nbits int
		i     int
	)
	for j := range out {
		for nbits < degree {
			acc = acc<<8 | uint64(src[i])
			nbits += 8
			i++
		}
		nbits -= degree
		out[j] = gf.Elem(acc >> nbits)
		acc &= 1<<nbits - 1
	}
	return out
}
