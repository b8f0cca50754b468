package config

import (
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// secretKey matches module config keys whose values are credentials.
var secretKey = regexp.MustCompile(`(?i)(token|secret|password|pass|api_key)$`)

// Secrets returns the literals to scrub from logs and audit events: the
// security.redact list plus every non-empty scalar stored under a
// credential-like key in a module section. Order is deterministic.
func (c *Config) Secrets() []string {
	out := slices.Clone(c.Security.Redact)
	for _, id := range Resolve(c) {
		node := c.Modules[id]
		collectSecrets(&node, &out)
	}
	if c.Tracing.Headers != nil {
		keys := make([]string, 0, len(c.Tracing.Headers))
		for k := range c.Tracing.Headers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if v := c.Tracing.Headers[k]; v != "" {
				out = append(out, v)
			}
		}
	}
	return slices.Compact(out)
}

func collectSecrets(n *yaml.Node, out *[]string) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range n.Content {
			collectSecrets(child, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind == yaml.ScalarNode && secretKey.MatchString(key.Value) {
				if val.Value != "" {
					*out = append(*out, val.Value)
				}
				continue
			}
			collectSecrets(val, out)
		}
	}
}
