// Package text applies literal cleanup rules to transformed documents.
// Models routinely wrap replies in code fences or leak boilerplate
// phrases; rules give a run a deterministic way to scrub those before
// the output is written.
package text

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// Rule is one literal replacement, optionally scoped to files matching
// a doublestar glob (relative, slash-separated paths).
type Rule struct {
	From  string `json:"from" yaml:"from" hcl:"from"`
	To    string `json:"to" yaml:"to" hcl:"to,optional"`
	Files string `json:"files,omitempty" yaml:"files,omitempty" hcl:"files,optional"`
}

// Result describes what Apply did to one document
type Result struct {
	Content          string // Content after all rules ran
	WasModified      bool   // Whether any rule changed anything
	ReplacementCount int    // Total occurrences replaced
}

// ValidateRules rejects rules that could never apply
func ValidateRules(rules []Rule) error {
	for i, rule := range rules {
		if rule.From == "" {
			return errors.Errorf("rule %d: from is required", i)
		}
		if rule.Files != "" {
			if !doublestar.ValidatePattern(rule.Files) {
				return errors.Errorf("rule %d: invalid files pattern %q", i, rule.Files)
			}
		}
	}
	return nil
}

// Apply runs every matching rule against the content of one document.
// relPath is the document's slash-separated path relative to the input
// root, used to scope rules with a files glob.
func Apply(content, relPath string, rules []Rule) Result {
	result := Result{Content: content}

	for _, rule := range rules {
		if rule.From == "" {
			continue
		}
		if rule.Files != "" {
			matched, err := doublestar.Match(rule.Files, relPath)
			if err != nil || !matched {
				continue
			}
		}

		count := strings.Count(result.Content, rule.From)
		if count == 0 {
			continue
		}

		result.Content = strings.ReplaceAll(result.Content, rule.From, rule.To)
		result.WasModified = true
		result.ReplacementCount += count
	}

	return result
}
