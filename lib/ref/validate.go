// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// maxNameLength bounds every identifier so that ids stay small in
// snapshots and per-message payloads.
const maxNameLength = 64

func validateName(kind, raw string) error {
	if raw == "" {
		return fmt.Errorf("empty %s", kind)
	}
	if len(raw) > maxNameLength {
		return fmt.Errorf("%s too long (%d bytes, max %d): %q", kind, len(raw), maxNameLength, raw)
	}
	for index := 0; index < len(raw); index++ {
		character := raw[index]
		switch {
		case character >= 'a' && character <= 'z':
		case character >= 'A' && character <= 'Z':
		case character >= '0' && character <= '9':
		case character == '.' || character == '_' || character == '-':
		default:
			return fmt.Errorf("%s contains invalid character %q at offset %d: %q", kind, character, index, raw)
		}
	}
	return nil
}
