// Package normalize turns provider JSON documents into station metadata and
// observation readings. Missing or malformed fields never fail a parse; they
// fall back to documented defaults.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyDocument is returned by Parse for a body with no JSON value.
var ErrEmptyDocument = errors.New("empty document")

// Parse decodes raw into a Document. Objects that repeat a key are merged:
// nested objects merge recursively and for any other value the later one wins.
func Parse(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, ErrEmptyDocument
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Document{}, fmt.Errorf("decode document: trailing data after top-level value")
	}
	return Document{root: v}, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		// json.Number, string, bool or nil. Numbers are converted on read so
		// an unrepresentable value only affects its own field.
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (map[string]any, error) {
	obj := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj[key] = merge(obj[key], val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func merge(existing, incoming any) any {
	prev, ok := existing.(map[string]any)
	if !ok {
		return incoming
	}
	next, ok := incoming.(map[string]any)
	if !ok {
		return incoming
	}
	for k, v := range next {
		prev[k] = merge(prev[k], v)
	}
	return prev
}
