package qasm

import (
	"math"
	"strconv"
	"strings"
)

// FormatParam formats a parameter value, using pi notation when the value
// lands on a common pi fraction. The printer leans on this so emitted QASM
// reads the way humans write it.
func FormatParam(val float64) string {
	type piForm struct {
		value   float64
		display string
	}
	piForms := []piForm{
		{2 * math.Pi, "2*pi"},
		{math.Pi, "pi"},
		{math.Pi / 2, "pi/2"},
		{math.Pi / 3, "pi/3"},
		{math.Pi / 4, "pi/4"},
		{math.Pi / 6, "pi/6"},
		{math.Pi / 8, "pi/8"},
		{math.Pi / 16, "pi/16"},
		{3 * math.Pi / 4, "3*pi/4"},
		{3 * math.Pi / 2, "3*pi/2"},
		{2 * math.Pi / 3, "2*pi/3"},
	}

	for _, pf := range piForms {
		if math.Abs(val-pf.value) < 1e-10 {
			return pf.display
		}
		if math.Abs(val+pf.value) < 1e-10 {
			return "-" + pf.display
		}
	}

	return strconv.FormatFloat(val, 'g', -1, 64)
}

// ParseParamExpr recognizes pi expressions outside full parses: pi, 2pi,
// 2*pi, pi/2, 3pi/4, -pi, -3*pi/4 and plain numbers. The interactive
// frontend uses this for quick parameter entry; QASM source goes through
// the real expression grammar instead.
func ParseParamExpr(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val, true
	}

	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	idx := strings.Index(s, "pi")
	if idx < 0 {
		return 0, false
	}

	coeff := 1.0
	if idx > 0 {
		coeffStr := strings.TrimSuffix(s[:idx], "*")
		if coeffStr != "" {
			v, err := strconv.ParseFloat(coeffStr, 64)
			if err != nil {
				return 0, false
			}
			coeff = v
		}
	}

	result := coeff * math.Pi
	rest := s[idx+2:]
	if rest != "" {
		if !strings.HasPrefix(rest, "/") {
			return 0, false
		}
		denom, err := strconv.ParseFloat(rest[1:], 64)
		if err != nil || denom == 0 {
			return 0, false
		}
		result /= denom
	}

	if negative {
		result = -result
	}
	return result, true
}

// ParseParams splits a comma-separated parameter list, returning nil when
// any element fails to parse.
func ParseParams(input string) []float64 {
	var params []float64
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, ok := ParseParamExpr(part)
		if !ok {
			return nil
		}
		params = append(params, val)
	}
	return params
}

// FormatParams joins formatted parameters with ", ".
func FormatParams(params []float64) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = FormatParam(p)
	}
	return strings.Join(parts, ", ")
}
