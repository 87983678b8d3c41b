package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
	"indent": func(prefix, s string) string {
		lines := strings.Split(s, "\n")
		for i, l := range lines {
			lines[i] = prefix + l
		}
		return strings.Join(lines, "\n")
	},
}

// Template is a parsed prompt template. Prompts are plain text, so nothing is
// HTML escaped.
type Template struct {
	tmpl *template.Template
}

// MustParse parses a prompt template and panics on syntax errors. It is meant
// for package-level prompt definitions.
func MustParse(name, text string) *Template {
	return &Template{tmpl: template.Must(template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text))}
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderTemplate parses and renders text in one step.
func RenderTemplate(text string, data any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}
	tmpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
