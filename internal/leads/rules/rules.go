// Package rules loads the immutable lookup tables used to derive leads:
// jurisdiction to county, ordered trade keyword groups and permit type
// heuristics. Tables are read once at start and shared read-only.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule names recorded in lead metadata.
const (
	RuleKeyword     = "keyword"
	RulePermitType  = "permit_type"
	RulePermitClass = "permit_class"
	RuleFallback    = "fallback"
)

// KeywordGroup maps any of Keywords to Name.
type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the parsed rule set. Do not mutate after Load.
type Rules struct {
	Fallback       string            `yaml:"fallback"`
	Jurisdictions  map[string]string `yaml:"jurisdictions"`
	Trades         []KeywordGroup    `yaml:"trades"`
	TypeHeuristics []KeywordGroup    `yaml:"type_heuristics"`
}

// Classification is the outcome of Classify.
type Classification struct {
	Trade   string
	Rule    string
	Keyword string
}

// Default returns the embedded rule set.
func Default() (*Rules, error) {
	return Parse(defaultRules)
}

// Load returns the rule set at path, or the embedded one when path is empty.
func Load(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lead rules: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule document.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse lead rules: %w", err)
	}
	if len(r.Trades) == 0 {
		return nil, fmt.Errorf("lead rules: no trades defined")
	}
	if strings.TrimSpace(r.Fallback) == "" {
		return nil, fmt.Errorf("lead rules: fallback is required")
	}

	jurisdictions := make(map[string]string, len(r.Jurisdictions))
	for key, county := range r.Jurisdictions {
		jurisdictions[JurisdictionKey(key)] = strings.TrimSpace(county)
	}
	r.Jurisdictions = jurisdictions
	r.Trades = r.normalizeGroups(r.Trades)
	r.TypeHeuristics = r.normalizeGroups(r.TypeHeuristics)
	return &r, nil
}

// fold lower-cases text. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}

func (r *Rules) normalizeGroups(groups []KeywordGroup) []KeywordGroup {
	out := make([]KeywordGroup, 0, len(groups))
	for _, g := range groups {
		keywords := make([]string, 0, len(g.Keywords))
		for _, kw := range g.Keywords {
			if kw = strings.TrimSpace(fold(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		out = append(out, KeywordGroup{Name: strings.TrimSpace(g.Name), Keywords: keywords})
	}
	return out
}

// JurisdictionKey normalizes "TX Harris" and "tx_harris" to "tx-harris".
func JurisdictionKey(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), "-")
}

// CountyFor looks up the county of a jurisdiction.
func (r *Rules) CountyFor(jurisdiction string) (string, bool) {
	county, ok := r.Jurisdictions[JurisdictionKey(jurisdiction)]
	if !ok || county == "" {
		return "", false
	}
	return county, true
}

// Classify picks the trade for a permit. Keyword groups are tried in order
// against description and type together, then type heuristics, then the class
// verbatim, then the fallback.
func (r *Rules) Classify(description, permitType, permitClass string) Classification {
	text := fold(strings.TrimSpace(description) + " " + strings.TrimSpace(permitType))
	if group, kw, ok := firstMatch(r.Trades, text); ok {
		return Classification{Trade: group, Rule: RuleKeyword, Keyword: kw}
	}

	typeText := fold(permitType)
	if group, kw, ok := firstMatch(r.TypeHeuristics, typeText); ok {
		return Classification{Trade: group, Rule: RulePermitType, Keyword: kw}
	}

	if class := strings.TrimSpace(permitClass); class != "" {
		return Classification{Trade: class, Rule: RulePermitClass}
	}
	return Classification{Trade: r.Fallback, Rule: RuleFallback}
}

func firstMatch(groups []KeywordGroup, text string) (string, string, bool) {
	for _, g := range groups {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				return g.Name, kw, true
			}
		}
	}
	return "", "", false
}
