package forum

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const titleClamp = 80

// Page carries what the layout needs on every page.
type Page struct {
	User *SessionUser
}

type HomeView struct {
	Page
	Categories   []Category
	LatestTopics []TopicSummary
	Stats        Stats
}

type CategoriesView struct {
	Page
	Categories []Category
	Stats      Stats
}

type CategoryView struct {
	Page
	Category Category
	Topics   []TopicSummary
}

type NewTopicView struct {
	Page
	Category Category
	Form     TopicForm
	Error    string
}

type ThreadView struct {
	Page
	Topic Topic
	Posts []Post
}

type ReplyView struct {
	Page
	Topic Topic
	Form  ReplyForm
	Error string
}

type ReportFormView struct {
	Page
	Values SightingForm
	Error  string
}

type ReportsView struct {
	Page
	Reports   []SightingSummary
	Submitted bool
}

type AccountView struct {
	Page
	Username string
	Email    string
	Error    string
}

// Views holds one parsed template set per page, each sharing the layout.
type Views struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"clamp": func(s string) string { return clampText(s, titleClamp) },
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

func NewViews() (*Views, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &Views{pages: make(map[string]*template.Template)}
	for _, p := range pages {
		name := path.Base(p)
		if name == "layout.html" {
			continue
		}
		tpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		v.pages[name] = tpl
	}
	return v, nil
}

// Render executes the page into a buffer first so a template failure never
// leaves a half written response.
func (v *Views) Render(w http.ResponseWriter, status int, name string, data any) error {
	tpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// clampText shortens s to n runes, the last one an ellipsis when cut.
func clampText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
