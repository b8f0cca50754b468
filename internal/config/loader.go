package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// varRef matches ${NAME} and ${NAME:-fallback}. A backslash escapes "}"
// inside the fallback.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// LookupFunc resolves a variable reference. os.LookupEnv is the usual one.
type LookupFunc func(name string) (string, bool)

// Load reads path and hands it to Parse with the process environment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(raw, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands variable references, decodes the document and applies
// defaults. Unknown top-level keys are rejected so a misspelled "cron:" or
// "log_level:" does not go unnoticed; module entries are kept raw for their
// module to decode. The result is not validated.
func Parse(raw []byte, lookup LookupFunc) (*Config, error) {
	expanded, err := expand(raw, lookup)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// expand substitutes every reference in raw. A reference with no value and
// no fallback is an error; all of them are reported together, once each.
func expand(raw []byte, lookup LookupFunc) ([]byte, error) {
	var missing []string
	out := varRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := varRef.FindSubmatch(ref)
		name := string(m[1])
		if v, ok := lookup(name); ok {
			return []byte(v)
		}
		if m[2] != nil {
			return m[2]
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return ref
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("unset variables without fallback: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
