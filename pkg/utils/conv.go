package utils

import (
	"strconv"
	"strings"
	"time"
)

func ParseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func ParseKB(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// ParseSeconds parses fractional seconds such as "0.125".
func ParseSeconds(s string) (time.Duration, error) {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(val * float64(time.Second)).Round(time.Millisecond), nil
}
