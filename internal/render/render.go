package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// TimestampLayout is how pages show the moment they were rendered.
const TimestampLayout = "02/01/2006 15:04:05"

type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// HTML executes the named page into a buffer first so a template error never
// leaves a half-written response.
func (r *Renderer) HTML(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.Copy(w, &buf)
	return err
}

func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"price":   formatPrice,
		"compact": formatCompact,
		"supply":  formatSupply,
		"pct":     formatPct,
		"share":   formatShare,
		"up":      func(v float64) bool { return v >= 0 },
	}
}

func formatPrice(v float64) string {
	switch {
	case v == 0:
		return "0.00"
	case math.Abs(v) < 1:
		return humanize.CommafWithDigits(v, 6)
	}
	return humanize.FormatFloat("#,###.##", v)
}

// formatCompact renders large amounts as e.g. "1.8 T".
func formatCompact(v float64) string {
	value, prefix := humanize.ComputeSI(v)
	switch prefix {
	case "G":
		prefix = "B"
	case "k":
		prefix = "K"
	}
	return strings.TrimSpace(humanize.FtoaWithDigits(value, 2) + " " + prefix)
}

func formatSupply(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

func formatPct(v float64) string {
	sign := ""
	if v > 0 {
		sign = "+"
	}
	return sign + humanize.FtoaWithDigits(v, 2) + "%"
}

// formatShare renders a proportion such as market dominance, without a sign.
func formatShare(v float64) string {
	return humanize.FtoaWithDigits(v, 2) + "%"
}
