// Package reporting renders a session's compliance posture to PDF for
// `aegis audit summary --format pdf` (spec §4.13, §6). Grounded directly
// on the teacher's PDFExporter (internal/adapters/reporting/
// pdf_exporter.go): same gofpdf page/header/stat-grid/table/footer
// layout, repurposed from a WiFi vulnerability scorecard onto a session
// decision/detection scorecard.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders domain.SessionSummary (and optionally a sample of
// domain.AuditRecord rows) to a PDF compliance report.
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportSessionReport generates the compliance PDF for one session. recent
// holds the most recent audit records to list in the detail table (the
// CLI caller decides how many to include; nil/empty just omits the
// table).
func (e *PDFExporter) ExportSessionReport(summary domain.SessionSummary, recent []domain.AuditRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, summary)
	e.addRiskBanner(pdf, summary)
	e.addStatistics(pdf, summary)
	e.addRecentDecisions(pdf, recent)
	e.addFooter(pdf, summary)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("reporting: generate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, s domain.SessionSummary) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, "AEGIS Compliance Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 14)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, "Session "+s.SessionID, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	periodStr := fmt.Sprintf("Window: %s to %s", s.StartedAt.Format("2006-01-02 15:04:05"), s.EndedAt.Format("2006-01-02 15:04:05"))
	pdf.CellFormat(0, 6, periodStr, "", 1, "L", false, 0, "")

	pdf.Ln(8)
}

// addRiskBanner draws a colored banner sized by the security-event rate,
// mirroring the teacher's colored risk-score box.
func (e *PDFExporter) addRiskBanner(pdf *gofpdf.Fpdf, s domain.SessionSummary) {
	rate := eventRate(s)
	r, g, b := riskColor(rate)

	pdf.SetFillColor(r, g, b)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 30, "F")

	pdf.SetFont("Arial", "B", 36)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(25, y+5)
	pdf.CellFormat(80, 20, fmt.Sprintf("%.0f%%", rate*100), "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.SetXY(110, y+8)
	pdf.CellFormat(80, 14, riskLabel(rate)+" Event Rate", "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

func eventRate(s domain.SessionSummary) float64 {
	if s.TotalDatagrams == 0 {
		return 0
	}
	return float64(s.SecurityEvents) / float64(s.TotalDatagrams)
}

func riskColor(rate float64) (r, g, b int) {
	switch {
	case rate >= 0.2:
		return 220, 53, 69
	case rate >= 0.1:
		return 255, 149, 0
	case rate >= 0.02:
		return 255, 204, 0
	default:
		return 52, 199, 89
	}
}

func riskLabel(rate float64) string {
	switch {
	case rate >= 0.2:
		return "Critical"
	case rate >= 0.1:
		return "High"
	case rate >= 0.02:
		return "Medium"
	default:
		return "Low"
	}
}

func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, s domain.SessionSummary) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Decision Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(60, 60, 60)

	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Total Datagrams", fmt.Sprintf("%d", s.TotalDatagrams), []int{0, 102, 204}},
		{"Accepted", fmt.Sprintf("%d", s.Accepted), []int{52, 199, 89}},
		{"Constrained", fmt.Sprintf("%d", s.Constrained), []int{255, 204, 0}},
		{"Held", fmt.Sprintf("%d", s.Held), []int{255, 149, 0}},
		{"RTL Triggered", fmt.Sprintf("%d", s.RTLTriggered), []int{220, 53, 69}},
		{"Security Events", fmt.Sprintf("%d", s.SecurityEvents), []int{220, 53, 69}},
		{"Flood Detections", fmt.Sprintf("%d", s.FloodDetections), []int{255, 149, 0}},
		{"Replay Detections", fmt.Sprintf("%d", s.ReplayDetections), []int{255, 149, 0}},
		{"Injection Detections", fmt.Sprintf("%d", s.InjectionDetections), []int{220, 53, 69}},
		{"Intent Mismatches", fmt.Sprintf("%d", s.IntentMismatches), []int{255, 204, 0}},
	}

	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(10)
}

func (e *PDFExporter) addRecentDecisions(pdf *gofpdf.Fpdf, recent []domain.AuditRecord) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Recent Decisions", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(recent) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No audit records available", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(15, 8, "Seq", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Kind", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Decision", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Risk", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Rationale", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, rec := range recent {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}
		r, g, b := severityColor(rec.Decision.Severity)

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", rec.SequenceNumber), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, string(rec.Kind), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, string(rec.Decision.State), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(25, 7, string(rec.Decision.Severity), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, fmt.Sprintf("%.2f", rec.Decision.TotalRisk), "1", 0, "C", false, 0, "")

		rationale := rec.Rationale
		if len(rationale) > 30 {
			rationale = rationale[:27] + "..."
		}
		pdf.CellFormat(40, 7, rationale, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func severityColor(sev domain.Severity) (r, g, b int) {
	switch sev {
	case domain.SeverityCritical:
		return 220, 53, 69
	case domain.SeverityHigh:
		return 255, 149, 0
	case domain.SeverityMedium:
		return 255, 204, 0
	default:
		return 52, 199, 89
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, s domain.SessionSummary) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footerText := fmt.Sprintf("Generated by aegis audit summary | Session %s", s.SessionID)
	pdf.CellFormat(0, 5, footerText, "", 1, "C", false, 0, "")
}
