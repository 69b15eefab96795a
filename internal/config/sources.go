package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceProfile describes how to pull winning numbers out of one external
// lottery source. The structural offsets drift whenever the source changes its
// layout, so they live in configuration rather than code.
type SourceProfile struct {
	Name string       `yaml:"name"`
	Kind string       `yaml:"kind"` // "json" or "html"
	URL  string       `yaml:"url"`
	JSON *JSONProfile `yaml:"json,omitempty"`
	HTML *HTMLProfile `yaml:"html,omitempty"`
}

// JSONProfile locates the draw inside a JSON feed using gjson path syntax.
type JSONProfile struct {
	// IssueListPath points at the array of draws, newest first.
	IssueListPath string `yaml:"issue_list_path"`
	// DetailField names the per-draw field holding a JSON-encoded string array.
	DetailField string `yaml:"detail_field"`
	// SpecialIndex is the detail entry whose last two digits are the special prize.
	SpecialIndex int `yaml:"special_index"`
	// SeventhIndex is the detail entry holding the comma-separated seventh prizes.
	SeventhIndex int `yaml:"seventh_index"`
}

// HTMLProfile locates the draw inside a scraped results table.
type HTMLProfile struct {
	TableClass string `yaml:"table_class"`
	SpecialRow int    `yaml:"special_row"`
	SpecialCol int    `yaml:"special_col"`
	SeventhRow int    `yaml:"seventh_row"`
	SeventhCol int    `yaml:"seventh_col"`
}

type sourcesFile struct {
	Sources []SourceProfile `yaml:"sources"`
}

// LoadSources reads source profiles from a YAML file. A missing file yields
// the built-in defaults so a bare deployment still works.
func LoadSources(path string) (map[string]SourceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSources(), nil
		}
		return nil, fmt.Errorf("read sources config: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources config: %w", err)
	}

	profiles := make(map[string]SourceProfile, len(file.Sources))
	for _, p := range file.Sources {
		if p.Name == "" {
			return nil, fmt.Errorf("source profile missing name")
		}
		if p.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", p.Name)
		}
		switch p.Kind {
		case "json":
			if p.JSON == nil {
				return nil, fmt.Errorf("source %s: json section is required", p.Name)
			}
		case "html":
			if p.HTML == nil {
				return nil, fmt.Errorf("source %s: html section is required", p.Name)
			}
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", p.Name, p.Kind)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// DefaultSources returns the two source layouts observed in production.
func DefaultSources() map[string]SourceProfile {
	return map[string]SourceProfile{
		"xoso188": {
			Name: "xoso188",
			Kind: "json",
			URL:  "https://xoso188.net/api/front/open/lottery/history/list/5/miba",
			JSON: &JSONProfile{
				IssueListPath: "t.issueList",
				DetailField:   "detail",
				SpecialIndex:  0,
				SeventhIndex:  7,
			},
		},
		"minhngoc": {
			Name: "minhngoc",
			Kind: "html",
			URL:  "https://www.minhngoc.net.vn/ket-qua-xo-so/mien-bac.html",
			HTML: &HTMLProfile{
				TableClass: "bkqmienbac",
				SpecialRow: 1,
				SpecialCol: 1,
				SeventhRow: 8,
				SeventhCol: 1,
			},
		},
	}
}
