package protocol

import (
	"math"
	"strconv"
	"strings"
)

// fieldSet is the tokenized body of a line: key=value pairs (keys lowered)
// and bare positional tokens, in order.
type fieldSet struct {
	kv  map[string]string
	pos []string
}

func splitFields(tokens []string) fieldSet {
	fs := fieldSet{}
	for _, t := range tokens {
		if i := strings.IndexByte(t, '='); i > 0 {
			if fs.kv == nil {
				fs.kv = make(map[string]string, len(tokens))
			}
			fs.kv[strings.ToLower(t[:i])] = t[i+1:]
			continue
		}
		fs.pos = append(fs.pos, t)
	}
	return fs
}

// keyed reports whether the line uses the key=value grammar.
func (fs fieldSet) keyed() bool {
	return len(fs.kv) > 0
}

// lookup returns the value of the first alias present.
func (fs fieldSet) lookup(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if v, ok := fs.kv[a]; ok {
			return v, true
		}
	}
	return "", false
}

// positional returns the i-th bare token.
func (fs fieldSet) positional(i int) (string, bool) {
	if i < 0 || i >= len(fs.pos) {
		return "", false
	}
	return fs.pos[i], true
}

// parseFloat accepts plain decimals and a comma decimal separator.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.IndexByte(s, '.') < 0 && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseInt accepts integers and integral floats such as "3.0".
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, ok := parseFloat(s)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// parseBool accepts 0/1, t/f and true/false (strconv.ParseBool spellings).
func parseBool(s string) (bool, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}
