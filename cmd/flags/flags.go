// Package flags defines pflag.Value implementations for config types that
// pflag has no builtin for.
package flags

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StringToUint64Value parses a comma separated list of key=value pairs into
// a map[string]uint64. Used for the prefunded genesis accounts flag.
type StringToUint64Value struct {
	value   map[string]uint64
	changed bool
}

// NewStringToUint64Value wraps the given map so flag values are written
// into it.
func NewStringToUint64Value(p map[string]uint64) *StringToUint64Value {
	return &StringToUint64Value{value: p}
}

// Set implements pflag.Value.
func (s *StringToUint64Value) Set(val string) error {
	if !s.changed {
		for k := range s.value {
			delete(s.value, k)
		}
	}
	for _, pair := range strings.Split(val, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("%s must be formatted as key=value", pair)
		}
		parsed, err := strconv.ParseUint(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", pair, err)
		}
		s.value[strings.TrimSpace(kv[0])] = parsed
	}
	s.changed = true
	return nil
}

// Type implements pflag.Value.
func (s *StringToUint64Value) Type() string {
	return "stringToUint64"
}

// String implements pflag.Value.
func (s *StringToUint64Value) String() string {
	pairs := make([]string, 0, len(s.value))
	for k, v := range s.value {
		pairs = append(pairs, fmt.Sprintf("%s=%d", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// CastStringToMapStringUint64 parses the String() form back into a map. It
// is used when reading the flag value back out of viper.
func CastStringToMapStringUint64(val string) map[string]uint64 {
	parsed := make(map[string]uint64)
	if val == "" {
		return parsed
	}
	for _, pair := range strings.Split(val, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil {
			continue
		}
		parsed[strings.TrimSpace(kv[0])] = amount
	}
	return parsed
}
