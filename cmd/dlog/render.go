package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/dlog/pkg/core"
)

const timeLayout = "2006-01-02 15:04:05"

// printer renders entries for humans or as JSON lines.
type printer struct {
	w        io.Writer
	asJSON   bool
	showPath bool
	loc      *time.Location

	id, when, tags, path, rule lipgloss.Style
}

func newPrinter(w io.Writer, asJSON, showPath bool) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:        w,
		asJSON:   asJSON,
		showPath: showPath,
		loc:      time.Local,
		id:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		when:     r.NewStyle().Foreground(lipgloss.Color("245")),
		tags:     r.NewStyle().Foreground(lipgloss.Color("86")),
		path:     r.NewStyle().Faint(true),
		rule:     r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (p *printer) print(e core.Entry) error {
	if p.asJSON {
		return json.NewEncoder(p.w).Encode(e)
	}

	var b strings.Builder
	b.WriteString(p.id.Render(fmt.Sprintf("[%d]", e.ID)))
	b.WriteString(" ")
	b.WriteString(p.when.Render(e.CreatedAt.In(p.loc).Format(timeLayout)))
	if e.HasTags() {
		b.WriteString(" | Tags: ")
		b.WriteString(p.tags.Render(strings.Join(e.Tags, ",")))
	}
	b.WriteString("\n")
	if p.showPath {
		b.WriteString("  └─ Path: ")
		b.WriteString(p.path.Render(e.Directory))
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimRight(e.Message, " \t\r\n"))
	b.WriteString("\n")
	b.WriteString(p.rule.Render(strings.Repeat("─", 40)))
	b.WriteString("\n")

	_, err := io.WriteString(p.w, b.String())
	return err
}
