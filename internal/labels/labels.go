// Package labels generates the sequential custom labels assigned to items at discovery.
package labels

import (
	"fmt"
	"time"
)

// DefaultPrefix is prepended to every label.
const DefaultPrefix = "C"

// DatePrefix encodes a date as yymmdd.
func DatePrefix(date time.Time) string {
	return date.Format("060102")
}

// Generate returns n labels of the form {prefix}{yymmdd}_{seq}, where seq
// continues from processedCount and is zero-padded to four digits.
func Generate(prefix string, processedCount, n int, date time.Time) []string {
	if n <= 0 {
		return nil
	}
	if processedCount < 0 {
		processedCount = 0
	}
	day := DatePrefix(date)
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%s_%04d", prefix, day, processedCount+i+1)
	}
	return out
}
