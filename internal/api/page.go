package api

import (
	"bytes"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/pizzaparty/slices/internal/diagram"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Pizza party</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.pies { display: flex; flex-wrap: wrap; gap: 1.5rem; }
figure { margin: 0; text-align: center; }
</style>
</head>
<body>
<h1>Pizza party</h1>
<p>{{.Slices}} slices ordered by {{.Participants}} {{if eq .Participants 1}}person{{else}}people{{end}}: {{.Pies}} whole {{if eq .Pies 1}}pie{{else}}pies{{end}}{{if .Uncovered}}, {{.Uncovered}} slices not yet filling a pie{{end}}.</p>
<div class="pies">
{{range .Figures}}<figure>
{{.SVG}}<figcaption>{{.Title}}</figcaption>
</figure>
{{end}}</div>
</body>
</html>
`))

type indexFigure struct {
	Title string
	SVG   template.HTML
}

type indexPage struct {
	Participants int
	Slices       int
	Pies         int
	Uncovered    int
	Figures      []indexFigure
}

// Index serves an HTML page embedding every diagram of the current order.
func (h *Handler) Index() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap, res, err := h.currentPlan()
		if err != nil {
			h.logger.Error("render index", zap.Error(err))
			http.Error(w, "unable to plan the current order", http.StatusInternalServerError)
			return
		}

		page := indexPage{
			Participants: snap.Participants,
			Slices:       res.Demand,
			Pies:         len(res.Plan.Pies),
			Uncovered:    res.Plan.Uncovered.Total(),
			Figures:      make([]indexFigure, 0, len(res.Diagrams)),
		}
		for _, d := range res.Diagrams {
			var svg bytes.Buffer
			if err := diagram.WriteInline(&svg, d); err != nil {
				h.logger.Error("render diagram", zap.String("title", d.Title), zap.Error(err))
				http.Error(w, "unable to render diagram", http.StatusInternalServerError)
				return
			}
			// WriteInline escapes every label, so the markup is safe to embed.
			page.Figures = append(page.Figures, indexFigure{Title: d.Title, SVG: template.HTML(svg.String())})
		}

		var out bytes.Buffer
		if err := indexTemplate.Execute(&out, page); err != nil {
			h.logger.Error("execute index template", zap.Error(err))
			http.Error(w, "unable to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", res.ETag())
		_, _ = w.Write(out.Bytes())
	})
}
