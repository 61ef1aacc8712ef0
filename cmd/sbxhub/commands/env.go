package commands

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseEnvSpecs parses `KEY=VALUE` entries, a bare `KEY` takes the value from the
// current environment. Later entries override earlier ones.
func parseEnvSpecs(specs []string) (map[string]string, error) {
	env := map[string]string{}
	for _, spec := range specs {
		key, value, hasValue := strings.Cut(spec, "=")
		if !envKeyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid env var name %q", key)
		}
		if !hasValue {
			v, ok := os.LookupEnv(key)
			if !ok {
				return nil, fmt.Errorf("env var %q is not set on the host", key)
			}
			value = v
		}
		env[key] = value
	}

	return env, nil
}

// parseLabels parses `key=value` labels.
func parseLabels(specs []string) (map[string]string, error) {
	labels := map[string]string{}
	for _, spec := range specs {
		key, value, ok := strings.Cut(spec, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label %q, must be key=value", spec)
		}
		labels[key] = value
	}

	return labels, nil
}
