package errors

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// Catalog is the on-disk form of a list of benign error signatures.
type Catalog struct {
	Dialect string `yaml:"dialect"`
	// Substrings match case-sensitively anywhere in the error text.
	Substrings []string `yaml:"substrings"`
	// Patterns are regular expressions matched against the error text.
	Patterns []string `yaml:"patterns"`
}

// Registry decides whether an engine error is an expected limitation of the
// engine (the check is inconclusive) or a genuine failure. A Registry is
// immutable once built and safe for concurrent use.
type Registry struct {
	substrings []string
	patterns   []*regexp.Regexp
}

// NewRegistry merges the given catalogs.
func NewRegistry(catalogs ...Catalog) (*Registry, error) {
	r := &Registry{}
	for _, c := range catalogs {
		for _, s := range c.Substrings {
			if s == "" {
				continue
			}
			r.substrings = append(r.substrings, s)
		}
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("catalog %q: pattern %q: %w", c.Dialect, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
	}
	return r, nil
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse error catalog: %w", err)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read error catalog: %w", err)
	}
	return ParseCatalog(data)
}

// BuiltinCatalog returns the embedded catalog for a dialect name.
func BuiltinCatalog(dialect string) (Catalog, error) {
	data, err := catalogFS.ReadFile("catalog/" + strings.ToLower(dialect) + ".yaml")
	if err != nil {
		return Catalog{}, fmt.Errorf("no builtin error catalog for dialect %q", dialect)
	}
	return ParseCatalog(data)
}

// ForDialect builds a registry from the builtin catalog of dialect plus any
// extra catalog files.
func ForDialect(dialect string, extraPaths ...string) (*Registry, error) {
	builtin, err := BuiltinCatalog(dialect)
	if err != nil {
		return nil, err
	}
	catalogs := []Catalog{builtin}
	for _, p := range extraPaths {
		if p == "" {
			continue
		}
		c, err := LoadCatalog(p)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return NewRegistry(catalogs...)
}

// Match returns the signature that err matches, if any.
func (r *Registry) Match(err error) (string, bool) {
	if err == nil || r == nil {
		return "", false
	}
	msg := err.Error()
	for _, s := range r.substrings {
		if strings.Contains(msg, s) {
			return s, true
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(msg) {
			return re.String(), true
		}
	}
	return "", false
}

// Classify wraps err as *ExpectedError or *ExecError.
func (r *Registry) Classify(query string, err error) error {
	if err == nil {
		return nil
	}
	if sig, ok := r.Match(err); ok {
		return &ExpectedError{Query: query, Signature: sig, Err: err}
	}
	return &ExecError{Query: query, Err: err}
}
