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

package quantize

import (
	"fmt"
	"math"
)

const (
	// MinDPI and MaxDPI bound the supported scanner resolutions.
	MinDPI = 300
	MaxDPI = 1000

	// DefaultAngleQuanta is the number of direction sectors.
	DefaultAngleQuanta = 6
)

// DefaultGridDist returns the grid spacing in pixels for a resolution,
// round(29/569 * dpi), which is 25 at 500 dpi.
func DefaultGridDist(dpi int) int {
	return int(math.Round(29.0 / 569.0 * float64(dpi)))
}

// EstimatePoints approximates the number of points NewHexGrid lays out for
// the given geometry without building the grid.
func EstimatePoints(width, height, gridDist int) float64 {
	if gridDist <= 0 {
		return math.Inf(1)
	}
	diag := math.Ceil(math.Hypot(float64(width), float64(height)))
	radius := math.Ceil(diag + 0.5*float64(gridDist))
	cell := float64(gridDist) * float64(gridDist) * math.Sqrt(3) / 2
	return math.Pi * radius * radius / cell
}

type point struct{ x, y float64 }

// HexGrid quantizes minutiae on a hexagonal grid covering a disc around
// the origin large enough for any pre-aligned template of the configured
// image size.
type HexGrid struct {
	width       int
	height      int
	gridDist    int
	angleQuanta int
	points      []point
}

var _ Quantizer = (*HexGrid)(nil)

// NewHexGrid builds the grid for images of width x height pixels.
func NewHexGrid(width, height, gridDist, angleQuanta int) (*HexGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d", ErrInvalidArgument, width, height)
	}
	if gridDist <= 0 {
		return nil, fmt.Errorf("%w: grid distance %d", ErrInvalidArgument, gridDist)
	}
	if angleQuanta <= 0 {
		return nil, fmt.Errorf("%w: angle quanta %d", ErrInvalidArgument, angleQuanta)
	}

	diag := math.Ceil(math.Sqrt(float64(width*width + height*height)))
	radius := math.Ceil(diag + 0.5*float64(gridDist))

	g := &HexGrid{
		width:       width,
		height:      height,
		gridDist:    gridDist,
		angleQuanta: angleQuanta,
	}
	for _, p := range hexagonalPoints(-radius, -radius, radius, radius, float64(gridDist)) {
		if p.x*p.x+p.y*p.y <= radius*radius {
			g.points = append(g.points, p)
		}
	}
	return g, nil
}

// hexagonalPoints lays rows of points spaced lambda apart inside the
// rectangle [x0,x1]x[y0,y1], shifting every other row by lambda/2 and
// centering the result.
func hexagonalPoints(x0, y0, x1, y1, lambda float64) []point {
	dy := lambda * math.Tan(math.Pi/3) / 2
	xmax, ymax := x0, y0

	var points []point
	shift := false
	for y := y0; y <= y1; y += dy {
		ymax = max(ymax, y)
		x := x0
		if shift {
			x += lambda / 2
		}
		for ; x <= x1; x += lambda {
			points = append(points, point{x, y})
			xmax = max(xmax, x)
		}
		shift = !shift
	}

	mx, my := (x1-xmax)/2, (y1-ymax)/2
	for i := range points {
		points[i].x += mx
		points[i].y += my
	}
	return points
}

// Points returns the number of grid points.
func (g *HexGrid) Points() int { return len(g.points) }

// AngleQuanta returns the number of direction sectors.
func (g *HexGrid) AngleQuanta() int { return g.angleQuanta }

// Size returns Points() * AngleQuanta().
func (g *HexGrid) Size() int { return len(g.points) * g.angleQuanta }

// Code quantizes a single minutia. Angles outside [0, 2π) are reduced
// modulo 2π.
func (g *HexGrid) Code(m Minutia) uint32 {
	nearest := 0
	best := math.MaxFloat64
	for i, p := range g.points {
		dx, dy := p.x-m.X, p.y-m.Y
		if d := dx*dx + dy*dy; d < best {
			best = d
			nearest = i
		}
	}

	theta := math.Mod(m.Angle, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	sector := int(math.Floor(theta / (2 * math.Pi) * float64(g.angleQuanta)))
	if sector >= g.angleQuanta {
		sector = g.angleQuanta - 1
	}
	return uint32(nearest + sector*len(g.points))
}

// Quantize returns up to tmax distinct codes of the view's minutiae,
// highest quality first.
func (g *HexGrid) Quantize(view View, tmax int) ([]uint32, error) {
	return collect(view, tmax, g.Code)
}
