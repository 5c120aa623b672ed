// Package ruleio reads and writes portable rule bundles in YAML or JSON.
//
// A bundle holds rules without server identifiers so it can be imported into
// any Virtualpaper instance. Decoding accepts three layouts:
//
//	rules: [...]        bundle with a rules array
//	name: ...           a single rule
//	- name: ...         a bare list of rules
package ruleio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/virtualpaper/console/internal/domain"
)

// BundleVersion is written into every exported bundle
const BundleVersion = 1

// Format is a bundle serialization
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts yaml, yml and json in any case
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml", "":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", domain.NewAppError(domain.ErrInvalidInput, fmt.Sprintf("unsupported bundle format: %s", name), 400, map[string]any{
		"field": "format",
		"value": name,
	})
}

// FormatFromPath picks the format from a file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// Bundle is the exported document
type Bundle struct {
	Version    int              `yaml:"version" json:"version"`
	ExportedAt time.Time        `yaml:"exported_at" json:"exported_at"`
	Rules      []domain.RuleDTO `yaml:"rules" json:"rules"`
}

// NewBundle normalizes rules and strips rule, condition and action ids
func NewBundle(rules []domain.Rule, exportedAt time.Time) Bundle {
	bundle := Bundle{
		Version:    BundleVersion,
		ExportedAt: exportedAt.UTC(),
		Rules:      make([]domain.RuleDTO, 0, len(rules)),
	}
	for _, rule := range rules {
		bundle.Rules = append(bundle.Rules, domain.NormalizeForCreate(rule))
	}
	return bundle
}

// Encode serializes a bundle
func Encode(bundle Bundle, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bundle to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(bundle); err != nil {
			return nil, fmt.Errorf("failed to marshal bundle to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to marshal bundle to YAML: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

type ruleList struct {
	Rules []domain.Rule `yaml:"rules" json:"rules"`
}

// Decode parses any of the accepted layouts. An input with no rules is an error.
func Decode(data []byte, format Format) ([]domain.Rule, error) {
	var rules []domain.Rule
	var err error

	switch format {
	case FormatJSON:
		rules, err = decodeWith(data, json.Unmarshal)
	case FormatYAML:
		rules, err = decodeWith(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInvalidInput, fmt.Sprintf("failed to parse %s bundle: %v", format, err), 400, err, nil)
	}
	if len(rules) == 0 {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "Bundle contains no rules", 400, nil)
	}
	return rules, nil
}

func decodeWith(data []byte, unmarshal func([]byte, any) error) ([]domain.Rule, error) {
	var list ruleList
	if err := unmarshal(data, &list); err == nil && len(list.Rules) > 0 {
		return list.Rules, nil
	}

	var single domain.Rule
	if err := unmarshal(data, &single); err == nil && single.Name != "" {
		return []domain.Rule{single}, nil
	}

	var bare []domain.Rule
	if err := unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	// Report the error of the bundle layout, the one we write ourselves.
	if err := unmarshal(data, &list); err != nil {
		return nil, err
	}
	return nil, nil
}
