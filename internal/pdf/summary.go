// Package pdf renders the application summary attached to admin emails.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/formdata"
)

const (
	labelWidth = 70.0
	lineHeight = 6.0
)

// Summary describes what the rendered document shows.
type Summary struct {
	Application *domain.Application
	Category    domain.Category
	// Action is "Submitted" or "Updated".
	Action      string
	GeneratedAt time.Time
}

// Generator renders application summaries.
type Generator struct {
	title string
}

// NewGenerator returns a generator whose documents carry title in the header.
func NewGenerator(title string) *Generator {
	return &Generator{title: title}
}

// Render produces an A4 PDF listing every form field in document order
// followed by the attached files.
func (g *Generator) Render(s Summary) ([]byte, error) {
	if s.Application == nil {
		return nil, fmt.Errorf("render summary: missing application")
	}
	app := s.Application

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(tr(fmt.Sprintf("%s application %s", s.Category.Label(), app.ID)), false)
	doc.SetAuthor(tr(g.title), false)
	doc.SetAutoPageBreak(true, 15)
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont("Helvetica", "I", 8)
		doc.CellFormat(0, 8, fmt.Sprintf("Page %d", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(fmt.Sprintf("%s Application (%s)", s.Category.Label(), s.Action)), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 5, tr(g.title), "", 1, "L", false, 0, "")
	doc.Ln(3)

	section(doc, "Reference")
	row(doc, tr, "Application ID", app.ID)
	row(doc, tr, "Form", app.FormKey)
	row(doc, tr, "Region", string(app.Region))
	row(doc, tr, "Applicant type", string(app.ApplicantType))
	row(doc, tr, "Submitted", formatTime(app.CreatedAt))
	row(doc, tr, "Last updated", formatTime(app.UpdatedAt))
	row(doc, tr, "Editable until", formatTime(app.EditUntil))
	row(doc, tr, "Generated", formatTime(s.GeneratedAt))

	section(doc, "Form data")
	fields := formdata.Flatten(app.FormData)
	if len(fields) == 0 {
		row(doc, tr, "(empty)", "")
	}
	for _, f := range fields {
		row(doc, tr, f.Label(), f.Value)
	}

	section(doc, "Documents")
	if len(app.Files) == 0 {
		row(doc, tr, "(none)", "")
	}
	for _, f := range app.Files {
		row(doc, tr, formdata.Humanize(f.Field), fmt.Sprintf("%s (%s, %s)", f.OriginalName, f.MimeType, humanSize(f.Size)))
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	return buf.Bytes(), nil
}

func section(doc *fpdf.Fpdf, title string) {
	doc.Ln(2)
	doc.SetFont("Helvetica", "B", 12)
	doc.SetFillColor(235, 238, 243)
	doc.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	doc.Ln(1)
}

func row(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	x, y := doc.GetXY()
	doc.SetFont("Helvetica", "B", 9)
	doc.MultiCell(labelWidth, lineHeight, tr(label), "", "L", false)
	labelEnd := doc.GetY()

	doc.SetXY(x+labelWidth, y)
	doc.SetFont("Helvetica", "", 9)
	doc.MultiCell(0, lineHeight, tr(value), "", "L", false)
	// A page break inside either cell leaves the cursor on a later page;
	// only realign when both cells ended on the same page.
	if doc.GetY() < labelEnd {
		doc.SetY(labelEnd)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
