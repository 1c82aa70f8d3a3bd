// util/json.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

///////////////////////////////////////////////////////////////////////////
// JSON

// DuplicateJSONKey reports a repeated key in a JSON object; the decoder
// would otherwise silently keep the last value.
type DuplicateJSONKey struct {
	Path string // dotted path to the enclosing object (e.g. "legs.LEG-1")
	Key  string
}

// FindDuplicateJSONKeys scans data and returns every repeated object key,
// in encounter order. Malformed JSON ends the scan early; syntax errors
// are the unmarshaler's to report.
func FindDuplicateJSONKeys(data []byte) []DuplicateJSONKey {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	var dups []DuplicateJSONKey
	walkJSONValue(dec, tok, "", &dups)
	return dups
}

// walkJSONValue consumes the value whose opening token is tok. Array
// elements share their array's path so duplicates inside them are
// reported against the array's key.
func walkJSONValue(dec *json.Decoder, tok json.Token, path string, dups *[]DuplicateJSONKey) {
	delim, ok := tok.(json.Delim)
	if !ok {
		return
	}
	switch delim {
	case '{':
		seen := make(map[string]bool)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return
			}
			key, _ := keyTok.(string)
			if seen[key] {
				*dups = append(*dups, DuplicateJSONKey{Path: path, Key: key})
			}
			seen[key] = true

			valTok, err := dec.Token()
			if err != nil {
				return
			}
			child := key
			if path != "" {
				child = path + "." + key
			}
			walkJSONValue(dec, valTok, child, dups)
		}
		dec.Token()
	case '[':
		for dec.More() {
			valTok, err := dec.Token()
			if err != nil {
				return
			}
			walkJSONValue(dec, valTok, path, dups)
		}
		dec.Token()
	}
}

func UnmarshalJSON[T any](r io.Reader, out *T) error {
	// The whole contents are needed up front to turn byte offsets in
	// decode errors into line numbers.
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return UnmarshalJSONBytes(b, out)
}

// UnmarshalJSONBytes unmarshals b into out, rewriting decode errors to
// name the line and character where they happened.
func UnmarshalJSONBytes[T any](b []byte, out *T) error {
	err := json.Unmarshal(b, out)
	if err == nil {
		return nil
	}

	decodeOffset := func(offset int64) (line, char int) {
		line, char = 1, 1
		for i := 0; i < int(offset) && i < len(b); i++ {
			if b[i] == '\n' {
				line++
				char = 1
			} else {
				char++
			}
		}
		return
	}

	switch jerr := err.(type) {
	case *json.SyntaxError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %v", line, char, jerr)

	case *json.UnmarshalTypeError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %s value for %s.%s invalid for type %s",
			line, char, jerr.Value, jerr.Struct, jerr.Field, jerr.Type.String())

	default:
		return err
	}
}
