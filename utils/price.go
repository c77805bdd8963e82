package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var priceNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts the first amount from marketplace price text such as
// "£1,299.99", "$42.00 to $50.00" or "12,99 €".
func ParsePrice(text string) (float64, bool) {
	m := priceNumber.FindString(text)
	if m == "" {
		return 0, false
	}

	if !strings.Contains(m, ".") {
		if i := strings.LastIndex(m, ","); i >= 0 && len(m)-i-1 == 2 {
			m = m[:i] + "." + m[i+1:]
		}
	}
	m = strings.ReplaceAll(m, ",", "")

	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
