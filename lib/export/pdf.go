// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package export renders baked strokes to printable documents.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/bureau-foundation/holdfast/lib/geometry"
	"github.com/bureau-foundation/holdfast/lib/line"
	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
)

// Projection flattens world points onto the page.
type Projection uint8

const (
	// ProjectXY looks down the Z axis (a wall).
	ProjectXY Projection = iota

	// ProjectXZ looks down the Y axis (a table top).
	ProjectXZ
)

// ParseProjection parses "xy" or "xz".
func ParseProjection(name string) (Projection, error) {
	switch name {
	case "", "xy":
		return ProjectXY, nil
	case "xz":
		return ProjectXZ, nil
	default:
		return 0, fmt.Errorf("unknown projection %q (want xy or xz)", name)
	}
}

func (p Projection) project(v geometry.Vec3) (float64, float64) {
	if p == ProjectXZ {
		return v.X, v.Z
	}
	return v.X, v.Y
}

// Stroke is one line to draw.
type Stroke struct {
	Points []geometry.Vec3
	Style  geometry.Style
}

// ErrNothingToExport is returned when there are no baked strokes.
var ErrNothingToExport = errors.New("no baked strokes to export")

// StrokesFromWorld extracts the baked lines from a snapshot. Unbaked
// lines are still being drawn and are skipped.
func StrokesFromWorld(world snapshot.World) ([]Stroke, error) {
	var strokes []Stroke
	for _, state := range world.Objects {
		if state.Kind != string(object.KindLine) {
			continue
		}
		restored, err := line.FromState(state)
		if err != nil {
			return nil, fmt.Errorf("restoring line %s: %w", state.ID, err)
		}
		if !restored.Baked.Get() {
			continue
		}
		strokes = append(strokes, Stroke{Points: restored.Points.Items(), Style: restored.Style()})
	}
	return strokes, nil
}

// Page geometry in millimetres (A4 landscape).
const (
	pageWidth  = 297.0
	pageHeight = 210.0
	margin     = 15.0
)

// WritePDF draws strokes onto a single A4 page, scaled to fit, and
// writes the document to w. World units are metres; line widths are
// scaled with the geometry so thick strokes stay proportionally thick.
func WritePDF(w io.Writer, strokes []Stroke, projection Projection) error {
	if len(strokes) == 0 {
		return ErrNothingToExport
	}

	frame := fit(strokes, projection)

	document := gofpdf.New("L", "mm", "A4", "")
	document.SetTitle("holdfast strokes", true)
	document.SetCreator("holdfast", true)
	document.AddPage()
	document.SetLineCapStyle("round")
	document.SetLineJoinStyle("round")

	for _, stroke := range strokes {
		drawStroke(document, stroke, projection, frame)
	}
	if err := document.Error(); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	if err := document.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

// frame maps projected world coordinates onto the page.
type frame struct {
	scale      float64
	minU, maxV float64
	offsetX    float64
	offsetY    float64
}

func (f frame) page(u, v float64) (float64, float64) {
	// Page Y grows downward; world V grows upward.
	return f.offsetX + (u-f.minU)*f.scale, f.offsetY + (f.maxV-v)*f.scale
}

func fit(strokes []Stroke, projection Projection) frame {
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, stroke := range strokes {
		for _, point := range stroke.Points {
			u, v := projection.project(point)
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
	}
	if math.IsInf(minU, 1) {
		return frame{scale: 1, offsetX: margin, offsetY: margin}
	}

	width, height := maxU-minU, maxV-minV
	usableWidth, usableHeight := pageWidth-2*margin, pageHeight-2*margin
	scale := math.Inf(1)
	if width > 0 {
		scale = usableWidth / width
	}
	if height > 0 {
		scale = math.Min(scale, usableHeight/height)
	}
	if math.IsInf(scale, 1) {
		// Every point coincides; draw at 1 mm per centimetre.
		scale = 100
	}
	return frame{
		scale:   scale,
		minU:    minU,
		maxV:    maxV,
		offsetX: margin + (usableWidth-width*scale)/2,
		offsetY: margin + (usableHeight-height*scale)/2,
	}
}

func drawStroke(document *gofpdf.Fpdf, stroke Stroke, projection Projection, f frame) {
	segments := len(stroke.Points) - 1
	for i := 0; i < segments; i++ {
		t := 0.0
		if segments > 1 {
			t = float64(i) / float64(segments-1)
		}
		color := stroke.Style.StartColor.Lerp(stroke.Style.EndColor, t)
		document.SetDrawColor(int(color.R), int(color.G), int(color.B))
		document.SetLineWidth(math.Max(stroke.Style.WidthAt(t)*f.scale, 0.1))

		x1, y1 := f.page(projection.project(stroke.Points[i]))
		x2, y2 := f.page(projection.project(stroke.Points[i+1]))
		document.Line(x1, y1, x2, y2)
	}
}
