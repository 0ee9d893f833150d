package query

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseLiteral converts a command-line parameter into a typed value.
//
// Integers, floats and booleans (true, True, TRUE, ...) become int64,
// float64 and bool. Numbers must be written as decimal without leading
// zeros, 0x/0o/0b, or a float with an optional exponent: 0123, 08, .inf
// and 1_000 stay text. null, ~ and None become nil. A quoted string is
// unquoted. Flow sequences ([1, 2]) and flow mappings ({a: 1}) become
// []any and map[string]any. Anything else, including timestamps and bare
// "key: value" text, is returned unchanged. The conversion is lossy: there
// is no way to pass the literal string "true" other than quoting it.
func ParseLiteral(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	if trimmed == "None" {
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return raw
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return raw
	}

	n := doc.Content[0]
	switch n.Kind {
	case yaml.ScalarNode:
		return scalarValue(n, raw)
	case yaml.SequenceNode:
		if n.Style&yaml.FlowStyle == 0 || !strings.HasPrefix(trimmed, "[") {
			return raw
		}
		var v []any
		if err := n.Decode(&v); err != nil {
			return raw
		}
		return normalize(v)
	case yaml.MappingNode:
		if n.Style&yaml.FlowStyle == 0 || !strings.HasPrefix(trimmed, "{") {
			return raw
		}
		var v map[string]any
		if err := n.Decode(&v); err != nil {
			return raw
		}
		return normalize(v)
	default:
		return raw
	}
}

// ParseParams applies ParseLiteral to every value.
func ParseParams(raw []string) []any {
	params := make([]any, len(raw))
	for i, r := range raw {
		params[i] = ParseLiteral(r)
	}
	return params
}

// numberSyntax is the subset of YAML numbers whose value is unambiguous.
// YAML also reads leading-zero octal, sexagesimal and .inf forms, which
// would silently change values like zip codes.
var numberSyntax = regexp.MustCompile(`^[-+]?(?:` +
	`0[xX][0-9a-fA-F]+|0[oO][0-7]+|0[bB][01]+|` +
	`0|[1-9][0-9]*|` +
	`(?:[0-9]+\.[0-9]*|\.[0-9]+)(?:[eE][-+]?[0-9]+)?|` +
	`[0-9]+[eE][-+]?[0-9]+` +
	`)$`)

func scalarValue(n *yaml.Node, raw string) any {
	switch {
	case n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0:
		return n.Value
	case n.Style != 0:
		// block scalars and tagged values stay text
		return raw
	}

	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		if !numberSyntax.MatchString(n.Value) {
			return raw
		}
		var i int64
		if err := n.Decode(&i); err == nil {
			return i
		}
	case "!!float":
		if !numberSyntax.MatchString(n.Value) {
			return raw
		}
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	}
	return raw
}

// normalize widens nested ints to int64 so containers match top-level
// scalars.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k, val := range x {
			x[k] = normalize(val)
		}
		return x
	default:
		return v
	}
}
