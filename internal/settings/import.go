package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// promptFrontmatter is the header of a prompt markdown file, either YAML
// between "---" lines or TOML between "+++" lines:
//
//	---
//	title: Translator
//	---
//	Translate everything the user says into French.
type promptFrontmatter struct {
	Title string `yaml:"title" toml:"title"`
}

// ParsePromptMarkdown parses a markdown file with YAML or TOML frontmatter.
// The body becomes the system prompt; a missing title falls back to
// fallbackTitle.
func ParsePromptMarkdown(content, fallbackTitle string) (PromptTemplate, error) {
	content = strings.TrimSpace(content)

	var (
		meta promptFrontmatter
		body string
	)
	switch {
	case strings.HasPrefix(content, "+++"):
		frontmatter, rest, err := parseFrontmatter(content, "+++")
		if err != nil {
			return PromptTemplate{}, err
		}
		if _, err := toml.Decode(frontmatter, &meta); err != nil {
			return PromptTemplate{}, fmt.Errorf("invalid frontmatter: %w", err)
		}
		body = rest
	default:
		frontmatter, rest, err := parseFrontmatter(content, "---")
		if err != nil {
			return PromptTemplate{}, err
		}
		if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
			return PromptTemplate{}, fmt.Errorf("invalid frontmatter: %w", err)
		}
		body = rest
	}

	p := PromptTemplate{Title: strings.TrimSpace(meta.Title), SystemPrompt: body}
	if p.Title == "" {
		p.Title = fallbackTitle
	}
	return p, p.Validate()
}

// parseFrontmatter splits content into the block between two fence lines
// and the body after it.
func parseFrontmatter(content, fence string) (frontmatter, body string, err error) {
	if !strings.HasPrefix(content, fence) {
		return "", "", ErrMissingFrontmatter
	}

	rest := content[len(fence):]
	endIdx := strings.Index(rest, "\n"+fence)
	if endIdx == -1 {
		return "", "", ErrMissingFrontmatter
	}

	frontmatter = strings.TrimSpace(rest[:endIdx])
	body = strings.TrimSpace(rest[endIdx+1+len(fence):])
	return frontmatter, body, nil
}

// ImportPrompts saves every prompt found at path, which may be a single .md
// file or a directory of them. Files that fail to parse are reported in the
// returned error after the rest are imported.
func (s *Store) ImportPrompts(ctx context.Context, path string) ([]PromptTemplate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	var (
		imported []PromptTemplate
		failed   []string
	)
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		title := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		p, err := ParsePromptMarkdown(string(content), title)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		saved, err := s.SavePrompt(ctx, p)
		if err != nil {
			return imported, err
		}
		imported = append(imported, saved)
	}

	if len(failed) > 0 {
		return imported, fmt.Errorf("skipped %d prompt file(s):\n  %s", len(failed), strings.Join(failed, "\n  "))
	}
	return imported, nil
}
