package diagram

import (
	"fmt"
	"html"
	"io"
)

const (
	wedgeStyle     = "stroke: #ffffff; stroke-width: 1"
	outlineStyle   = "fill: none; stroke: #333333; stroke-width: 0.5"
	uncoveredStyle = "fill: none; stroke: #999999; stroke-width: 0.5; stroke-dasharray: 4 2"
	labelStyle     = "font-family: sans-serif; font-size: 8px; text-anchor: middle; dominant-baseline: middle"
)

type svgWriter struct {
	w   io.Writer
	err error
}

func (s *svgWriter) printf(format string, a ...interface{}) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, a...)
}

// WriteSVG writes d as a standalone SVG document.
func WriteSVG(w io.Writer, d Diagram) error {
	s := &svgWriter{w: w}
	s.printf(`<?xml version="1.0"?>
<svg version="1.1" viewBox="%s %s %s %s" width="%s" height="%s" xmlns="http://www.w3.org/2000/svg">
`, num(d.Bounds.Min.X), num(d.Bounds.Min.Y), num(d.Bounds.Width()), num(d.Bounds.Height()), num(d.Size()), num(d.Size()))
	writeBody(s, d)
	s.printf("</svg>\n")
	return s.err
}

// WriteInline writes d as an <svg> element suitable for embedding in HTML.
func WriteInline(w io.Writer, d Diagram) error {
	s := &svgWriter{w: w}
	s.printf(`<svg viewBox="%s %s %s %s" width="%s" height="%s">
`, num(d.Bounds.Min.X), num(d.Bounds.Min.Y), num(d.Bounds.Width()), num(d.Bounds.Height()), num(d.Size()), num(d.Size()))
	writeBody(s, d)
	s.printf("</svg>\n")
	return s.err
}

func writeBody(s *svgWriter, d Diagram) {
	if d.Title != "" {
		s.printf("<title>%s</title>\n", html.EscapeString(d.Title))
	}
	style := outlineStyle
	if d.Uncovered {
		style = uncoveredStyle
	}
	s.printf("<circle cx='0' cy='0' r='%s' style='%s'/>\n", num(d.Radius), style)
	for _, wedge := range d.Wedges {
		s.printf("<path d='%s' style='fill: %s; %s'/>\n", wedge.Path, wedge.Color, wedgeStyle)
	}
	for _, wedge := range d.Wedges {
		s.printf("<text x='%s' y='%s' style='%s'>%s (%d)</text>\n",
			num(wedge.Anchor.X), num(wedge.Anchor.Y), labelStyle, html.EscapeString(wedge.Label), wedge.Slices)
	}
}
