package core

// options.go parses the option mini-language found in exclusion cells.
//
// A cell holds one or more trees separated by whitespace:
//
//	Color:red,blue,green; Size:S,M;
//
// Within a tree, the text before the first ':' names the option type and
// the rest is a list of option values separated by ',' or ';'. Empty
// values are discarded. A tree without a colon, without a type name or
// without any value is malformed; it is reported as an error in the
// sequence and the remaining trees are still parsed.

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrMalformedOption marks a tree that does not follow the option grammar.
var ErrMalformedOption = errors.New("malformed option tree")

// OptionSpec is one parsed tree: an option type and its ordered values.
type OptionSpec struct {
	Type   string
	Values []string
}

// OptionSyntaxError describes a malformed tree.
type OptionSyntaxError struct {
	Tree   string
	Reason string
}

func (e *OptionSyntaxError) Error() string {
	return fmt.Sprintf("option tree %q: %s", e.Tree, e.Reason)
}

func (e *OptionSyntaxError) Unwrap() error {
	return ErrMalformedOption
}

// ParseOptions returns the trees encoded in text, in order. Each element is
// either a spec or an *OptionSyntaxError for a malformed tree. The sequence
// is finite and can be ranged over any number of times.
func ParseOptions(text string) iter.Seq2[OptionSpec, error] {
	return func(yield func(OptionSpec, error) bool) {
		for _, tree := range strings.Fields(text) {
			spec, err := parseTree(tree)
			if !yield(spec, err) {
				return
			}
		}
	}
}

func parseTree(tree string) (OptionSpec, error) {
	name, rest, ok := strings.Cut(tree, ":")
	if !ok {
		return OptionSpec{}, &OptionSyntaxError{Tree: tree, Reason: "missing ':' after option type"}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return OptionSpec{}, &OptionSyntaxError{Tree: tree, Reason: "empty option type"}
	}

	tokens := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == ';'
	})
	values := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			values = append(values, tok)
		}
	}
	if len(values) == 0 {
		return OptionSpec{}, &OptionSyntaxError{Tree: tree, Reason: "no option values"}
	}

	return OptionSpec{Type: name, Values: values}, nil
}
