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
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/permutation"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

// Byte layout, all integers big-endian:
//
//	magic "FVBK" | version u8 | flags u8
//	width u16 | height u16 | dpi u16 | grid dist u8 | angle quanta u8
//	k u16 | tmax u16 | iterations u32 | slow-down u32 | field polynomial u32
//	permutation (dimension u32, images u32...)
//	coefficient count u32
//	coefficients u32... or salt[16] | nonce[24] | ciphertext[ceil(d*count/8)]
//
// where d is the field degree and the ciphertext covers the coefficients
// packed to d bits each.
const (
	formatVersion = 1
	headerSize    = 30

	flagEnrolled  = 1 << 0
	flagEncrypted = 1 << 1
)

var magic = [4]byte{'F', 'V', 'B', 'K'}

// SizeInBytes returns the length of the packed vault.
func (v *Vault) SizeInBytes() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sizeLocked()
}

func (v *Vault) sizeLocked() int {
	size := headerSize + v.perm.BinarySize() + 4
	if v.encrypted {
		return size + saltSize + nonceSize + packedSize(v.sealed.count, v.field.Degree())
	}
	return size + 4*len(v.coeffs)
}

// MarshalBinary packs the vault into a new buffer.
func (v *Vault) MarshalBinary() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	buf := make([]byte, v.sizeLocked())
	if _, err := v.packLocked(buf); err != nil {
		return nil, opError("MarshalBinary", err)
	}
	return buf, nil
}

// Pack writes the vault into buf and returns the number of bytes written.
// buf is left untouched when it is too small.
func (v *Vault) Pack(buf []byte) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	n, err := v.packLocked(buf)
	if err != nil {
		return 0, opError("Pack", err)
	}
	return n, nil
}

func (v *Vault) packLocked(buf []byte) (int, error) {
	size := v.sizeLocked()
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(buf))
	}

	out := make([]byte, size)
	defer clear(out)

	var flags byte
	if v.enrolled {
		flags |= flagEnrolled
	}
	if v.encrypted {
		flags |= flagEncrypted
	}

	p := v.params
	copy(out, magic[:])
	out[4] = formatVersion
	out[5] = flags
	binary.BigEndian.PutUint16(out[6:], uint16(p.Width))
	binary.BigEndian.PutUint16(out[8:], uint16(p.Height))
	binary.BigEndian.PutUint16(out[10:], uint16(p.DPI))
	out[12] = byte(p.GridDist)
	out[13] = byte(p.AngleQuanta)
	binary.BigEndian.PutUint16(out[14:], uint16(p.SecretSize))
	binary.BigEndian.PutUint16(out[16:], uint16(p.MaxFeatures))
	binary.BigEndian.PutUint32(out[18:], p.Iterations)
	binary.BigEndian.PutUint32(out[22:], p.SlowDownFactor)
	binary.BigEndian.PutUint32(out[26:], v.field.DefiningPolynomial())

	off := headerSize
	n, err := v.perm.PutBinary(out[off:])
	if err != nil {
		return 0, err
	}
	off += n

	if v.encrypted {
		binary.BigEndian.PutUint32(out[off:], uint32(v.sealed.count))
		off += 4
		off += copy(out[off:], v.sealed.salt[:])
		off += copy(out[off:], v.sealed.nonce[:])
		off += copy(out[off:], v.sealed.ciphertext)
	} else {
		binary.BigEndian.PutUint32(out[off:], uint32(len(v.coeffs)))
		off += 4
		for _, c := range v.coeffs {
			binary.BigEndian.PutUint32(out[off:], uint32(c))
			off += 4
		}
	}

	return copy(buf, out[:off]), nil
}

// Unpack reconstructs a vault from the first size bytes of buf. Every field
// is validated and sizes are bounded before anything is allocated.
func Unpack(buf []byte, size int, opts ...Option) (*Vault, error) {
	const op = "Unpack"
	if size < 0 || size > len(buf) {
		return nil, errorf(op, "%w: size %d with %d bytes available", ErrInvalidFormat, size, len(buf))
	}
	v, err := unpack(buf[:size], defaultOptions().apply(opts))
	if err != nil {
		return nil, opError(op, err)
	}
	return v, nil
}

// UnmarshalBinary replaces the receiver with the vault packed in data. The
// receiver keeps its options and is only modified on success.
func (v *Vault) UnmarshalBinary(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	o := v.opts
	if o.logger == nil {
		o = defaultOptions()
	}
	u, err := unpack(data, o)
	if err != nil {
		return opError("UnmarshalBinary", err)
	}

	if v.grid != nil {
		v.clearLocked()
	}
	v.params = u.params
	v.grid = u.grid
	v.field = u.field
	v.perm = u.perm
	v.coeffs = u.coeffs
	v.enrolled = u.enrolled
	v.encrypted = u.encrypted
	v.sealed = u.sealed
	v.opts = o
	return nil
}

func unpack(data []byte, opts options) (*Vault, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidFormat, len(data))
	}
	if [4]byte(data[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, data[4])
	}

	flags := data[5]
	if flags&^(flagEnrolled|flagEncrypted) != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrInvalidFormat, flags)
	}
	enrolled := flags&flagEnrolled != 0
	encrypted := flags&flagEncrypted != 0
	if encrypted && !enrolled {
		return nil, fmt.Errorf("%w: encrypted vault is not enrolled", ErrInvalidFormat)
	}

	params := Params{
		Width:          int(binary.BigEndian.Uint16(data[6:])),
		Height:         int(binary.BigEndian.Uint16(data[8:])),
		DPI:            int(binary.BigEndian.Uint16(data[10:])),
		GridDist:       int(data[12]),
		AngleQuanta:    int(data[13]),
		SecretSize:     int(binary.BigEndian.Uint16(data[14:])),
		MaxFeatures:    int(binary.BigEndian.Uint16(data[16:])),
		Iterations:     binary.BigEndian.Uint32(data[18:]),
		SlowDownFactor: binary.BigEndian.Uint32(data[22:]),
	}
	if params.GridDist > 0 && params.AngleQuanta > 0 && params.universeTooLarge() {
		return nil, fmt.Errorf("%w: about %.0f feature codes", ErrAllocationFailure, params.estimatedUniverse())
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	grid, err := quantize.NewHexGrid(params.Width, params.Height, params.GridDist, params.AngleQuanta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	n := grid.Size()

	field, err := gf.NewFieldWithPolynomial(binary.BigEndian.Uint32(data[26:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if field.Degree() != gf.DegreeFor(n) {
		return nil, fmt.Errorf("%w: field degree %d for %d features", ErrInvalidFormat, field.Degree(), n)
	}
	if int(field.Size())-n < params.MaxFeatures {
		return nil, fmt.Errorf("%w: field too small for %d blending features", ErrInvalidFormat, params.MaxFeatures)
	}

	off := headerSize
	perm, read, err := permutation.ReadBinary(data[off:], n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if perm.Dimension() != n {
		return nil, fmt.Errorf("%w: permutation dimension %d, want %d", ErrInvalidFormat, perm.Dimension(), n)
	}
	off += read

	if len(data)-off < 4 {
		return nil, fmt.Errorf("%w: missing coefficient count", ErrInvalidFormat)
	}
	count := int64(binary.BigEndian.Uint32(data[off:]))
	off += 4

	want := int64(0)
	if enrolled {
		want = int64(params.MaxFeatures)
	}
	if count != want {
		return nil, fmt.Errorf("%w: %d coefficients, want %d", ErrInvalidFormat, count, want)
	}

	body := 4 * count
	if encrypted {
		body = saltSize + nonceSize + int64(packedSize(int(count), field.Degree()))
	}
	if int64(len(data)-off) != body {
		return nil, fmt.Errorf("%w: %d bytes of coefficient data, want %d", ErrInvalidFormat, len(data)-off, body)
	}

	v := &Vault{
		params:    params,
		grid:      grid,
		field:     field,
		perm:      perm,
		enrolled:  enrolled,
		encrypted: encrypted,
		opts:      opts,
	}

	if encrypted {
		env := &envelope{count: int(count), ciphertext: make([]byte, body-saltSize-nonceSize)}
		off += copy(env.salt[:], data[off:])
		off += copy(env.nonce[:], data[off:])
		copy(env.ciphertext, data[off:])
		v.sealed = env
		return v, nil
	}

	if count > 0 {
		v.coeffs = make([]gf.Elem, count)
		for i := range v.coeffs {
			c := binary.BigEndian.Uint32(data[off:])
			if !field.Contains(gf.Elem(c)) {
				clear(v.coeffs)
				return nil, fmt.Errorf("%w: coefficient %d outside %s", ErrInvalidFormat, i, field)
			}
			v.coeffs[i] = gf.Elem(c)
			off += 4
		}
	}
	return v, nil
}
