package cache

import (
	"fmt"
	"strings"
)

const keySep = ":"

// GenerateKey joins prefix and id: GenerateKey("train", "BBCA.JK") == "train:BBCA.JK".
func GenerateKey(prefix string, id string) string {
	return prefix + keySep + id
}

// GenerateKeyWithParams appends each param formatted with %v.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, prefix)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, keySep)
}

// BuildPattern creates a glob pattern matching every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
