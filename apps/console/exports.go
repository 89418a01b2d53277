package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"brims/libs/listview"
	"brims/libs/mailer"

	"github.com/go-pdf/fpdf"
)

const (
	exportFormatCSV       = "csv"
	exportFormatPDF       = "pdf"
	exportTimestampLayout = "20060102-1504"
	exportPDFRowLimit     = 500
)

// exportIncidentView applies params to incidents the way the incident screen
// does, without pagination. A blank sort keeps the screen default.
func exportIncidentView(incidents []Incident, params listview.Params) []Incident {
	schema := incidentsSchema()
	filter := listview.FilterSpec{Search: params.Search, Categories: map[string]string{}}
	for name, value := range params.Categories {
		filter.Categories[name] = value
	}
	sort := schema.DefaultSort
	if params.Sort != "" && schema.Sortable(params.Sort) {
		sort = listview.SortSpec{Field: params.Sort, Direction: params.Direction}
		if sort.Direction == "" {
			sort.Direction = listview.Ascending
		}
	}
	return listview.Derive(incidents, schema, filter, sort)
}

func incidentExportFilename(format string, now time.Time) string {
	return fmt.Sprintf("incidents-%s.%s", now.UTC().Format(exportTimestampLayout), format)
}

func buildIncidentCSV(incidents []Incident) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	headers := []string{"incident_id", "title", "incident_type", "barangay", "location", "status", "severity", "archive_state", "reporter", "reported_at", "remarks"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, incident := range incidents {
		row := []string{
			incident.ID.String(),
			incident.Title,
			incident.Type,
			incident.Barangay,
			incident.Location,
			incident.Status,
			incident.Severity,
			incident.ArchiveState(),
			incident.ReporterName,
			incident.ReportedAt,
			incident.Remarks,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func buildIncidentPDF(incidents []Incident, title string, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format("2006-01-02 15:04 UTC")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total incidents: %d", len(incidents)))
	pdf.Ln(10)

	statusCounts := map[string]int{}
	for _, incident := range incidents {
		statusCounts[labelOrUnknown(incident.Status)]++
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Status distribution")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, entry := range rankCounts(statusCounts) {
		pdf.Cell(0, 6, tr(fmt.Sprintf("- %s: %d", entry.Label, entry.Count)))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	columns := []struct {
		header string
		width  float64
		value  func(Incident) string
	}{
		{"ID", 18, func(i Incident) string { return i.ID.String() }},
		{"Title", 70, func(i Incident) string { return i.Title }},
		{"Type", 35, func(i Incident) string { return i.Type }},
		{"Barangay", 40, func(i Incident) string { return i.Barangay }},
		{"Severity", 22, func(i Incident) string { return i.Severity }},
		{"Status", 28, func(i Incident) string { return i.Status }},
		{"State", 22, func(i Incident) string { return i.ArchiveState() }},
		{"Reported", 40, func(i Incident) string { return i.ReportedAt }},
	}

	pdf.SetFont("Helvetica", "B", 9)
	for _, column := range columns {
		pdf.CellFormat(column.width, 7, column.header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for index, incident := range incidents {
		if index == exportPDFRowLimit {
			pdf.Ln(2)
			pdf.Cell(0, 6, fmt.Sprintf("%d more incidents omitted, see the CSV export.", len(incidents)-exportPDFRowLimit))
			break
		}
		for _, column := range columns {
			pdf.CellFormat(column.width, 6, tr(truncateForCell(column.value(incident), column.width)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// truncateForCell cuts value to roughly what fits a 9pt cell of width mm.
func truncateForCell(value string, width float64) string {
	limit := int(width / 1.9)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// emailIncidentExport mails the view as PDF and CSV attachments.
func (a *App) emailIncidentExport(ctx context.Context, to string, incidents []Incident, title string) error {
	now := time.Now()
	csvData, err := buildIncidentCSV(incidents)
	if err != nil {
		return fmt.Errorf("build csv: %w", err)
	}
	pdfData, err := buildIncidentPDF(incidents, title, now)
	if err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}

	result, err := a.mailer.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("%s (%d)", title, len(incidents)),
		Text:    fmt.Sprintf("%s\n\nIncidents in this export: %d\nGenerated: %s\n", title, len(incidents), now.UTC().Format(time.RFC3339)),
		Attachments: []mailer.Attachment{
			{Filename: incidentExportFilename(exportFormatPDF, now), ContentType: "application/pdf", Content: pdfData},
			{Filename: incidentExportFilename(exportFormatCSV, now), ContentType: "text/csv", Content: csvData},
		},
	})
	if err != nil {
		return err
	}
	a.log.Info("incident export emailed", "provider", a.mailer.ProviderName(), "message_id", result.ProviderMessageID, "incidents", len(incidents))
	return nil
}
