package harness

import (
	"fmt"
	"math"
	"time"
)

// args reads typed step arguments. The first conversion failure is kept in
// err and later reads return zero values.
type args struct {
	m   map[string]any
	err error
}

func argMap(m map[string]any) *args {
	return &args{m: m}
}

func (a *args) fail(key, want string, v any) {
	if a.err == nil {
		a.err = fmt.Errorf("argument %q: want %s, got %T", key, want, v)
	}
}

func (a *args) has(key string) bool {
	_, ok := a.m[key]
	return ok
}

func (a *args) str(key string) string {
	v, ok := a.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, "string", v)
	}
	return s
}

// required is str that also fails on a missing or empty value.
func (a *args) required(key string) string {
	s := a.str(key)
	if s == "" && a.err == nil {
		a.err = fmt.Errorf("argument %q is required", key)
	}
	return s
}

func (a *args) integer(key string) int {
	v, ok := a.m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	a.fail(key, "integer", v)
	return 0
}

func (a *args) optInt(key string) *int {
	if !a.has(key) {
		return nil
	}
	n := a.integer(key)
	return &n
}

func (a *args) number(key string) float64 {
	v, ok := a.m[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	a.fail(key, "number", v)
	return 0
}

func (a *args) boolean(key string) bool {
	v, ok := a.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(key, "bool", v)
	}
	return b
}

func (a *args) optBool(key string) *bool {
	if !a.has(key) {
		return nil
	}
	b := a.boolean(key)
	return &b
}

func (a *args) strings(key string) []string {
	v, ok := a.m[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		a.fail(key, "list", v)
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			a.fail(key, "list of strings", e)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (a *args) duration(key string) time.Duration {
	s := a.str(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil && a.err == nil {
		a.err = fmt.Errorf("argument %q: %w", key, err)
	}
	return d
}

func (a *args) object(key string) map[string]any {
	v, ok := a.m[key]
	if !ok || v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		a.fail(key, "mapping", v)
	}
	return m
}
