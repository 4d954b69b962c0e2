package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
)

// baseTemplate is the layout every page executes.
const baseTemplate = "base"

// Renderer manages template parsing and rendering.
//
// Templates are organized as:
//   - layouts/base.html - the page layout, defines "base"
//   - components/*.html - shared fragments (nav, footer, flash)
//   - pages/*.html - one file per page, defines "title" and "content"
//
// Each page gets its own clone of the layout so page blocks don't collide.
type Renderer struct {
	templates map[string]*template.Template
	fsys      fs.FS
	logger    *slog.Logger
	isDev     bool
	mu        sync.RWMutex
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// TemplatesDir, when set, reads templates from disk instead of the
	// embedded copy. Combined with IsDev it reloads them on every request.
	TemplatesDir string
	Logger       *slog.Logger
	IsDev        bool
}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	fsys := TemplatesFS()
	if cfg.TemplatesDir != "" {
		fsys = os.DirFS(cfg.TemplatesDir)
	}

	r := &Renderer{
		fsys:   fsys,
		logger: cfg.Logger,
		isDev:  cfg.IsDev && cfg.TemplatesDir != "",
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRendererFromFS creates a renderer from a filesystem laid out like the
// embedded templates directory.
func NewRendererFromFS(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{fsys: fsys, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.New(baseTemplate).Funcs(TemplateFuncs()).ParseFS(fsys, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layouts: %w", err)
	}

	components, err := fs.Glob(fsys, "components/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob components: %w", err)
	}
	if len(components) > 0 {
		if base, err = base.ParseFS(fsys, components...); err != nil {
			return nil, fmt.Errorf("failed to parse components: %w", err)
		}
	}

	pages, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob pages: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		pageTmpl, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout for %s: %w", page, err)
		}
		if pageTmpl, err = pageTmpl.ParseFS(fsys, page); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", page, err)
		}

		// Store as "index", "premium", etc.
		name := strings.TrimSuffix(path.Base(page), path.Ext(page))
		templates[name] = pageTmpl
	}
	return templates, nil
}

// Reload re-parses all templates.
func (r *Renderer) Reload() error {
	templates, err := loadTemplates(r.fsys)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	if r.isDev {
		if err := r.Reload(); err != nil {
			return nil, fmt.Errorf("template reload failed: %w", err)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render renders a page to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	tmpl, err := r.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, baseTemplate, data)
}

// RenderHTTP renders a page directly to an http.ResponseWriter.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data interface{}) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// ListTemplates returns the names of all loaded pages.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
