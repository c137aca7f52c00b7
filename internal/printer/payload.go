package printer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// payload is a read-only view over one decoded JSON object. Getters report
// ok=false for absent keys and for values that cannot be coerced; the latter
// are logged at debug level.
type payload struct {
	data map[string]any
	log  *zap.Logger
	path string
}

func newPayload(data map[string]any, log *zap.Logger) payload {
	return payload{data: data, log: log}
}

func (p payload) has(key string) bool {
	_, ok := p.data[key]
	return ok
}

func (p payload) empty() bool { return len(p.data) == 0 }

func (p payload) keys() int { return len(p.data) }

func (p payload) mismatch(key string, v any, want string) {
	p.log.Debug("unexpected payload type",
		zap.String("field", p.path+key),
		zap.String("want", want),
		zap.Any("value", v))
}

func (p payload) child(key string, data map[string]any) payload {
	return payload{data: data, log: p.log, path: p.path + key + "."}
}

// object returns the nested object at key, or an empty payload.
func (p payload) object(key string) payload {
	v, ok := p.data[key]
	if !ok {
		return p.child(key, nil)
	}
	m, ok := v.(map[string]any)
	if !ok {
		p.mismatch(key, v, "object")
		return p.child(key, nil)
	}
	return p.child(key, m)
}

// at walks nested objects.
func (p payload) at(keys ...string) payload {
	cur := p
	for _, k := range keys {
		cur = cur.object(k)
	}
	return cur
}

// list returns the object elements of the array at key; non-object
// elements are skipped.
func (p payload) list(key string) []payload {
	v, ok := p.data[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		p.mismatch(key, v, "array")
		return nil
	}
	out := make([]payload, 0, len(arr))
	for i, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			p.mismatch(key+"["+strconv.Itoa(i)+"]", e, "object")
			continue
		}
		out = append(out, p.child(key, m))
	}
	return out
}

func (p payload) ints(key string) ([]int, bool) {
	v, ok := p.data[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		p.mismatch(key, v, "array")
		return nil, false
	}
	out := make([]int, 0, len(arr))
	for _, e := range arr {
		n, ok := toInt64(e)
		if !ok {
			p.mismatch(key, e, "int")
			continue
		}
		out = append(out, int(n))
	}
	return out, true
}

func (p payload) str(key string) (string, bool) {
	v, ok := p.data[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	p.mismatch(key, v, "string")
	return "", false
}

func (p payload) int64(key string) (int64, bool) {
	v, ok := p.data[key]
	if !ok || v == nil {
		return 0, false
	}
	n, ok := toInt64(v)
	if !ok {
		p.mismatch(key, v, "int")
	}
	return n, ok
}

func (p payload) int(key string) (int, bool) {
	n, ok := p.int64(key)
	return int(n), ok
}

func (p payload) float(key string) (float64, bool) {
	v, ok := p.data[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok {
		p.mismatch(key, v, "number")
	}
	return f, ok
}

func (p payload) bool(key string) (bool, bool) {
	v, ok := p.data[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed, true
		}
	case json.Number, float64:
		n, _ := toInt64(b)
		return n != 0, true
	}
	p.mismatch(key, v, "bool")
	return false, false
}

// hex parses a hexadecimal string value such as "fun" or "stat".
func (p payload) hex(key string) (uint64, bool) {
	s, ok := p.str(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		p.mismatch(key, s, "hex")
		return 0, false
	}
	return n, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Decode parses one wire message, keeping numbers exact.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
