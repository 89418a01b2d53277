package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sync"
)

//go:embed templates/console/*.tmpl console_static/*
var consoleAssetsFS embed.FS

type consoleTemplateRenderer struct {
	env string

	mu     sync.Mutex
	parsed map[string]*template.Template
}

func newConsoleTemplateRenderer(env string) *consoleTemplateRenderer {
	return &consoleTemplateRenderer{
		env:    env,
		parsed: map[string]*template.Template{},
	}
}

var consoleTemplateFuncs = template.FuncMap{
	"countTable": func(heading string, rows []consoleCountRowView) consoleCountTableView {
		return consoleCountTableView{Heading: heading, Rows: rows}
	},
}

// templatesForRender returns the layout and shared partials parsed with one
// screen template. Development reads from disk on every call so template
// edits show on reload; other envs parse each screen once from the embedded
// assets.
func (r *consoleTemplateRenderer) templatesForRender(contentTemplatePath string) (*template.Template, error) {
	if r.env == "development" {
		return parseConsoleTemplates(os.DirFS("."), contentTemplatePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.parsed[contentTemplatePath]; ok {
		return cached, nil
	}
	templates, err := parseConsoleTemplates(consoleAssetsFS, contentTemplatePath)
	if err != nil {
		return nil, err
	}
	r.parsed[contentTemplatePath] = templates
	return templates, nil
}

func parseConsoleTemplates(sourceFS fs.FS, contentTemplatePath string) (*template.Template, error) {
	templates, err := template.New("layout.tmpl").Funcs(consoleTemplateFuncs).
		ParseFS(sourceFS, consoleTemplateLayoutPath, consoleTemplatePartialsPath, contentTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("parse console templates: %w", err)
	}
	return templates, nil
}

func consoleStaticFileSystem(env string) (http.FileSystem, error) {
	if env == "development" {
		return http.Dir("console_static"), nil
	}

	sub, err := fs.Sub(consoleAssetsFS, "console_static")
	if err != nil {
		return nil, fmt.Errorf("console static fs: %w", err)
	}
	return http.FS(sub), nil
}
