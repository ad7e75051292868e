package normalize

import "encoding/json"

// Document is a decoded provider JSON value. The zero Document has no
// fields, so every lookup on it reports absence.
type Document struct {
	root any
}

// Lookup walks path through the document. String elements index objects and
// int elements index arrays. ok is false if any step is missing or has the
// wrong shape.
func (d Document) Lookup(path ...any) (any, bool) {
	cur := d.root
	for _, step := range path {
		switch s := step.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[s]; !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || s < 0 || s >= len(arr) {
				return nil, false
			}
			cur = arr[s]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Float returns the number at path. Null, strings, other non-numeric values
// and numbers outside the float64 range count as absent.
func (d Document) Float(path ...any) (float64, bool) {
	v, ok := d.Lookup(path...)
	if !ok {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// String returns the string at path. Non-string values count as absent.
func (d Document) String(path ...any) (string, bool) {
	v, ok := d.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
