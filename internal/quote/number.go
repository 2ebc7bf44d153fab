package quote

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses provider numeric encodings: plain numbers, numbers with
// thousands separators ("1,234.56"), and percent strings ("2.3%"). The second
// return is false when the input is empty or does not yield a finite number.
// It never panics or returns an error; absent is a normal outcome.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
