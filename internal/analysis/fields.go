package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fields is a decoded provider object. Providers are loose with types, so
// every accessor validates and reports whether the value was usable.
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) (fields, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: expected an object: %v", ErrUnavailable, err)
	}
	return f, nil
}

// number accepts JSON numbers and numeric strings such as "3,5 %".
func (f fields) number(key string) (float64, bool) {
	raw, ok := f[key]
	if !ok {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return toNumber(v)
}

func toNumber(v interface{}) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		s = strings.ReplaceAll(s, ",", ".")
		s = strings.TrimPrefix(s, "+")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func (f fields) text(key string) (string, bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// numbers keeps the numeric elements of an array field.
func (f fields) numbers(key string) []float64 {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var vs []interface{}
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil
	}
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if n, ok := toNumber(v); ok {
			out = append(out, n)
		}
	}
	return out
}

func (f fields) decode(key string, dest interface{}) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// copyNumbers validates the named numeric fields into dst.
func (f fields) copyNumbers(dst map[string]interface{}, keys ...string) {
	for _, k := range keys {
		if v, ok := f.number(k); ok {
			dst[k] = v
		}
	}
}

func (f fields) copyText(dst map[string]string, keys ...string) {
	for _, k := range keys {
		if v, ok := f.text(k); ok {
			dst[k] = v
		}
	}
}

func clampRange(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexString(strings.TrimSpace(t))
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case nil:
		*s = ""
	default:
		return fmt.Errorf("unexpected %T", v)
	}
	return nil
}
