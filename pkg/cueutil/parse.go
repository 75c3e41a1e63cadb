// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// maxFileSize caps the accepted input size so a malformed or hostile file
// cannot exhaust memory during compilation.
const maxFileSize = 1 << 20 // 1 MiB

// ParseAndDecode compiles the embedded schema, compiles the user data,
// unifies both, validates the result with concrete values required, and
// decodes it into T. schemaPath names the root definition inside the schema
// (e.g. "#Manifest"). filename is used only for error messages.
func ParseAndDecode[T any](schema, data []byte, schemaPath, filename string) (*T, error) {
	if filename == "" {
		filename = "<input>"
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%s: file too large (%d bytes, limit %d)", filename, len(data), maxFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return &result, nil
}
