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
	"fmt"
	"math"

	"github.com/jeremyhahn/go-fuzzyvault/pkg/gf"
	"github.com/jeremyhahn/go-fuzzyvault/pkg/quantize"
)

const (
	// DefaultSecretSize is the number of coefficients of the secret
	// polynomial, k.
	DefaultSecretSize = 10

	// DefaultMaxFeatures is the number of vault features including
	// blending features, tmax.
	DefaultMaxFeatures = 44

	// DefaultIterations is the decoder iteration budget, D.
	DefaultIterations = 1 << 16

	// DefaultSlowDownFactor is the only slow-down factor this vault
	// supports.
	DefaultSlowDownFactor = 1

	// MaxUniverse bounds the number of feature codes, so that the field
	// degree bitlen(n)+1 stays within gf.MaxDegree.
	MaxUniverse = 1 << (gf.MaxDegree - 1)
)

// Params configures a vault. Zero values of the optional fields are
// replaced by their defaults in New.
type Params struct {
	// Width and Height of the images the templates were extracted from.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// DPI is the scanner resolution, between 300 and 1000.
	DPI int `yaml:"dpi" json:"dpi"`

	// GridDist is the hexagonal grid spacing in pixels. Defaults to
	// round(29/569 * DPI).
	GridDist int `yaml:"grid_dist" json:"grid_dist"`

	// AngleQuanta is the number of direction sectors. Defaults to 6.
	AngleQuanta int `yaml:"angle_quanta" json:"angle_quanta"`

	// SecretSize is k; the secret polynomial has degree smaller than k.
	SecretSize int `yaml:"secret_size" json:"secret_size"`

	// MaxFeatures is tmax, the number of genuine plus blending features.
	MaxFeatures int `yaml:"max_features" json:"max_features"`

	// Iterations is D, the decoder iteration budget.
	Iterations uint32 `yaml:"iterations" json:"iterations"`

	// SlowDownFactor must be 1.
	SlowDownFactor uint32 `yaml:"slow_down_factor" json:"slow_down_factor"`
}

// DefaultParams returns the reference parameters for an image geometry.
func DefaultParams(width, height, dpi int) Params {
	return Params{
		Width:          width,
		Height:         height,
		DPI:            dpi,
		GridDist:       quantize.DefaultGridDist(dpi),
		AngleQuanta:    quantize.DefaultAngleQuanta,
		SecretSize:     DefaultSecretSize,
		MaxFeatures:    DefaultMaxFeatures,
		Iterations:     DefaultIterations,
		SlowDownFactor: DefaultSlowDownFactor,
	}
}

// WithDefaults fills unset optional fields.
func (p Params) WithDefaults() Params {
	if p.GridDist == 0 {
		p.GridDist = quantize.DefaultGridDist(p.DPI)
	}
	if p.AngleQuanta == 0 {
		p.AngleQuanta = quantize.DefaultAngleQuanta
	}
	if p.SecretSize == 0 {
		p.SecretSize = DefaultSecretSize
	}
	if p.MaxFeatures == 0 {
		p.MaxFeatures = DefaultMaxFeatures
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultIterations
	}
	if p.SlowDownFactor == 0 {
		p.SlowDownFactor = DefaultSlowDownFactor
	}
	return p
}

// Validate checks the parameters against the ranges of the byte format.
// A slow-down factor other than 1 is representable and only rejected when
// opening.
func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Width > math.MaxUint16:
		return fmt.Errorf("%w: width %d", ErrInvalidParameters, p.Width)
	case p.Height <= 0 || p.Height > math.MaxUint16:
		return fmt.Errorf("%w: height %d", ErrInvalidParameters, p.Height)
	case p.DPI < quantize.MinDPI || p.DPI > quantize.MaxDPI:
		return fmt.Errorf("%w: resolution %d dpi outside [%d, %d]",
			ErrInvalidParameters, p.DPI, quantize.MinDPI, quantize.MaxDPI)
	case p.GridDist <= 0 || p.GridDist > math.MaxUint8:
		return fmt.Errorf("%w: grid distance %d", ErrInvalidParameters, p.GridDist)
	case p.AngleQuanta <= 0 || p.AngleQuanta > math.MaxUint8:
		return fmt.Errorf("%w: angle quanta %d", ErrInvalidParameters, p.AngleQuanta)
	case p.SecretSize <= 0 || p.SecretSize > math.MaxUint16:
		return fmt.Errorf("%w: secret size %d", ErrInvalidParameters, p.SecretSize)
	case p.MaxFeatures < p.SecretSize || p.MaxFeatures > math.MaxUint16:
		return fmt.Errorf("%w: max features %d with secret size %d",
			ErrInvalidParameters, p.MaxFeatures, p.SecretSize)
	case p.Iterations == 0:
		return fmt.Errorf("%w: zero iterations", ErrInvalidParameters)
	case p.SlowDownFactor == 0:
		return fmt.Errorf("%w: zero slow-down factor", ErrInvalidParameters)
	case p.universeTooLarge():
		return fmt.Errorf("%w: about %.0f feature codes exceed %d",
			ErrInvalidParameters, p.estimatedUniverse(), MaxUniverse)
	}
	return nil
}

func (p Params) estimatedUniverse() float64 {
	return quantize.EstimatePoints(p.Width, p.Height, p.GridDist) * float64(p.AngleQuanta)
}

// universeTooLarge rejects geometries whose grid would not fit the largest
// field, before any grid is built. The estimate is allowed some slack; the
// exact size is checked once the grid exists.
func (p Params) universeTooLarge() bool {
	return p.estimatedUniverse() > 1.25*MaxUniverse
}
