package common

import "strings"

const (
	maskRune       = '*'
	maskKeepPrefix = 3
	maskKeepSuffix = 3
)

// MaskSecret hides all but the first and last three characters of value.
// Values of six characters or fewer are masked entirely. The masked string
// always has the same character count as the input.
func MaskSecret(value string) string {
	runes := []rune(value)
	n := len(runes)
	if n == 0 {
		return ""
	}
	if n <= maskKeepPrefix+maskKeepSuffix {
		return strings.Repeat(string(maskRune), n)
	}

	var b strings.Builder
	b.Grow(len(value))
	b.WriteString(string(runes[:maskKeepPrefix]))
	b.WriteString(strings.Repeat(string(maskRune), n-maskKeepPrefix-maskKeepSuffix))
	b.WriteString(string(runes[n-maskKeepSuffix:]))
	return b.String()
}
