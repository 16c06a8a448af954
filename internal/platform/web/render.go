package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer is an echo.Renderer over the embedded page templates. Every page
// is parsed together with layout.html.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, e := range entries {
		file := e.Name()
		if file == "layout.html" || !strings.HasSuffix(file, ".html") {
			continue
		}
		t, err := template.New(file).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(file, ".html")] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

var funcs = template.FuncMap{
	"date": func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("2006-01-02")
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.Format("2006-01-02")
		}
		return ""
	},
	"datetime": func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("Jan 2, 2006 15:04")
		case *time.Time:
			if t == nil {
				return "never"
			}
			return t.Format("Jan 2, 2006 15:04")
		}
		return ""
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"join": func(items []string) string {
		return strings.Join(items, ", ")
	},
}
