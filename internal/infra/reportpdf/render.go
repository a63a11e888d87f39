// Package reportpdf renders evidence reports as PDF documents.
package reportpdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

const ContentType = "application/pdf"

type Document struct {
	Title       string
	GeneratedAt time.Time
	Items       []evidence.Evidence
}

// Render lays out a cover summary followed by one section per item.
func Render(doc Document) ([]byte, error) {
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("render report: no evidence")
	}
	title := doc.Title
	if title == "" {
		title = "Evidence Report"
	}

	p := fpdf.New("P", "mm", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.SetTitle(title, true)
	p.SetCreator("Reclaim", true)
	p.SetMargins(18, 18, 18)
	p.SetAutoPageBreak(true, 18)
	p.SetFooterFunc(func() {
		p.SetY(-12)
		p.SetFont("Helvetica", "I", 8)
		p.SetTextColor(120, 120, 120)
		p.CellFormat(0, 6, fmt.Sprintf("Page %d", p.PageNo()), "", 0, "C", false, 0, "")
	})
	p.AddPage()

	p.SetFont("Helvetica", "B", 18)
	p.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.SetTextColor(90, 90, 90)
	p.CellFormat(0, 6, "Generated "+doc.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"), "", 1, "L", false, 0, "")
	p.CellFormat(0, 6, fmt.Sprintf("%d analyzed item(s)", len(doc.Items)), "", 1, "L", false, 0, "")
	p.SetTextColor(0, 0, 0)
	p.Ln(4)

	counts := SeverityCounts(doc.Items)
	p.SetFont("Helvetica", "B", 12)
	p.CellFormat(0, 8, "Severity overview", "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	for _, s := range []evidence.Severity{evidence.SeverityCritical, evidence.SeverityHigh, evidence.SeverityMedium, evidence.SeverityLow} {
		p.CellFormat(40, 6, string(s), "1", 0, "L", false, 0, "")
		p.CellFormat(20, 6, fmt.Sprint(counts[s]), "1", 1, "R", false, 0, "")
	}
	p.Ln(6)

	for i, it := range doc.Items {
		p.SetFont("Helvetica", "B", 12)
		p.MultiCell(0, 7, tr(fmt.Sprintf("%d. %s", i+1, it.FileName)), "", "L", false)
		p.SetFont("Helvetica", "", 9)
		p.SetTextColor(90, 90, 90)
		meta := fmt.Sprintf("%s | uploaded %s", it.FileType, it.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
		if it.AISeverity != "" {
			meta += " | severity " + string(it.AISeverity)
		}
		p.MultiCell(0, 5, tr(meta), "", "L", false)
		p.SetTextColor(0, 0, 0)
		p.SetFont("Helvetica", "", 10)
		p.MultiCell(0, 5, tr(it.AISummary), "", "L", false)
		if len(it.AILabels) > 0 {
			p.SetFont("Helvetica", "I", 9)
			p.MultiCell(0, 5, tr("Labels: "+strings.Join(it.AILabels, ", ")), "", "L", false)
		}
		p.Ln(4)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// SeverityCounts tallies items per severity. Unrated items are not counted.
func SeverityCounts(items []evidence.Evidence) map[evidence.Severity]int {
	out := make(map[evidence.Severity]int, 4)
	for _, it := range items {
		if it.AISeverity.Valid() {
			out[it.AISeverity]++
		}
	}
	return out
}
