// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"fmt"
	"math"
	"strconv"
)

// Color is an 8-bit RGBA color. It marshals as "#rrggbbaa" text, which
// is also the form accepted in configuration ("#rrggbb" implies opaque).
type Color struct {
	R, G, B, A uint8
}

// Some named colors for defaults and tests.
var (
	Black = Color{0, 0, 0, 255}
	White = Color{255, 255, 255, 255}
	Red   = Color{255, 0, 0, 255}
	Blue  = Color{0, 0, 255, 255}
)

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(raw string) (Color, error) {
	if len(raw) != 7 && len(raw) != 9 || raw[0] != '#' {
		return Color{}, fmt.Errorf("color must be #rrggbb or #rrggbbaa: %q", raw)
	}
	value, err := strconv.ParseUint(raw[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", raw, err)
	}
	if len(raw) == 7 {
		value = value<<8 | 0xff
	}
	return Color{R: uint8(value >> 24), G: uint8(value >> 16), B: uint8(value >> 8), A: uint8(value)}, nil
}

// Lerp interpolates from c to other at t in [0,1], rounding each channel.
func (c Color) Lerp(other Color, t float64) Color {
	mix := func(from, to uint8) uint8 {
		return uint8(math.Round(float64(from) + (float64(to)-float64(from))*t))
	}
	return Color{R: mix(c.R, other.R), G: mix(c.G, other.G), B: mix(c.B, other.B), A: mix(c.A, other.A)}
}

func (c Color) String() string { return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A) }

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(data []byte) error {
	parsed, err := ParseColor(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
