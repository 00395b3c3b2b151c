package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// ExpandEnv expands environment variable references in s. ${VAR:-default}
// yields default when VAR is unset or empty; other unset variables expand
// to the empty string.
func ExpandEnv(s string) string {
	return expandWith(s, os.Getenv)
}

func expandWith(s string, getenv func(string) string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if inner, ok := strings.CutPrefix(match, "${"); ok {
			inner = strings.TrimSuffix(inner, "}")
			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if v := getenv(name); v != "" {
					return v
				}
				return def
			}
			return getenv(inner)
		}
		return getenv(match[1:])
	})
}
