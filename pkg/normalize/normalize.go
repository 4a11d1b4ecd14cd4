// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

// Package normalize canonicalizes user-entered text before it is sent to the
// identity service.
//
// # Usage
//
// Names typed on different platforms may arrive in decomposed Unicode form
// (e.g., "é" as "e" + combining acute). Normalizing to NFC before submission
// keeps the stored profile byte-stable across clients.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Name canonicalizes a user-entered name.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFC (composes combining marks into single code points).
// 2. Trims leading/trailing whitespace.
// 3. Collapses internal whitespace runs to a single space.
func Name(s string) string {
	// 1. Compose combining marks
	result := norm.NFC.String(s)

	// 2 & 3. Collapse whitespace
	return strings.Join(strings.Fields(result), " ")
}
