package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// patternFile mirrors the YAML structure of an external pattern file.
type patternFile struct {
	Version  string `yaml:"version"`
	Patterns []struct {
		Name        string `yaml:"name"`
		Regex       string `yaml:"regex"`
		Category    string `yaml:"category"`
		Severity    int    `yaml:"severity"`
		Description string `yaml:"description"`
	} `yaml:"patterns"`
}

var validCategories = map[Category]bool{
	CategoryCredential:       true,
	CategoryPII:              true,
	CategoryJailbreak:        true,
	CategoryPromptInjection:  true,
	CategoryPromptExtraction: true,
	CategoryRoleplay:         true,
}

// LoadDir parses and compiles every *.yaml / *.yml file in dir. Files are
// processed in lexical order so pattern precedence is deterministic.
func LoadDir(dir string) ([]*Pattern, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("read pattern dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, "", fmt.Errorf("no pattern files in %s", dir)
	}

	var all []*Pattern
	var versions []string
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}

		var pf patternFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}

		for i, raw := range pf.Patterns {
			if raw.Name == "" {
				return nil, "", fmt.Errorf("%s: pattern %d has no name", path, i)
			}
			cat := Category(raw.Category)
			if !validCategories[cat] {
				return nil, "", fmt.Errorf("%s: pattern %q has unknown category %q", path, raw.Name, raw.Category)
			}
			p, err := compile(raw.Name, raw.Regex, cat, raw.Severity, raw.Description)
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", path, err)
			}
			all = append(all, p)
		}
		if pf.Version != "" {
			versions = append(versions, pf.Version)
		}
	}

	version := strings.Join(versions, "+")
	if version == "" {
		version = "files"
	}
	return all, version, nil
}

// Reload replaces the active pattern set with the contents of dir. On any
// error the previous set stays active; a bad file never leaves the gateway
// without patterns.
func (r *Registry) Reload(dir string) error {
	all, version, err := LoadDir(dir)
	if err != nil {
		return err
	}
	r.install(all, version)
	return nil
}
