package catalog

import (
	"regexp"
	"strings"
)

// quantPattern matches GGUF quantization tags such as Q4_K_M, Q8_0, IQ3_XS, F16, BF16.
var quantPattern = regexp.MustCompile(`(?i)(?:^|[-_.])((?:I?Q[1-8](?:_[0-9A-Z]+)*)|BF16|F16|F32)(?:[-_.]|$)`)

// ParseQuantization extracts the quantization label from a model file name.
// Returns "" when no known tag is present.
func ParseQuantization(fileName string) string {
	name := strings.TrimSuffix(fileName, ".gguf")
	name = strings.TrimSuffix(name, ".GGUF")
	m := quantPattern.FindAllStringSubmatch(name, -1)
	if len(m) == 0 {
		return ""
	}
	// the tag closest to the end wins (e.g. "q4-model-q8_0")
	return strings.ToUpper(m[len(m)-1][1])
}
