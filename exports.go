package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

func buildReportsCSV(reports []Report) (string, error) {
	buffer := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buffer)
	headers := []string{"report_id", "reported_at", "status", "category", "location", "lat", "lng", "reporter", "notes"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}
	for _, report := range reports {
		lat, lng := "", ""
		if report.Coords != nil {
			lat = strconv.FormatFloat(report.Coords.Lat, 'f', 6, 64)
			lng = strconv.FormatFloat(report.Coords.Lng, 'f', 6, 64)
		}
		row := []string{
			report.ID,
			time.Unix(report.Timestamp, 0).UTC().Format(time.RFC3339),
			report.Status,
			report.Category,
			report.LocationString,
			lat,
			lng,
			report.UserName,
			report.Notes,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

func buildReportsPDF(reports []Report, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, "CleanMadurai AI - Waste Reports")

	pdf.Ln(12)

	pending := 0
	statusCounts := map[string]int{}
	categoryCounts := map[string]int{}
	for _, report := range reports {
		if report.Status == statusPending {
			pending++
		}
		statusCounts[report.Status]++
		categoryCounts[report.Category]++
	}

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total reports: %d", len(reports)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Pending: %d", pending))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Status distribution")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	statusKeys := make([]string, 0, len(statusCounts))
	for key := range statusCounts {
		statusKeys = append(statusKeys, key)
	}
	sort.Slice(statusKeys, func(i, j int) bool { return statusCounts[statusKeys[i]] > statusCounts[statusKeys[j]] })
	for _, key := range statusKeys {
		pdf.Cell(0, 6, fmt.Sprintf("- %s: %d", key, statusCounts[key]))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Category distribution")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	categoryKeys := make([]string, 0, len(categoryCounts))
	for key := range categoryCounts {
		categoryKeys = append(categoryKeys, key)
	}
	sort.Slice(categoryKeys, func(i, j int) bool { return categoryCounts[categoryKeys[i]] > categoryCounts[categoryKeys[j]] })
	for _, key := range categoryKeys {
		pdf.Cell(0, 6, fmt.Sprintf("- %s: %d", key, categoryCounts[key]))
		pdf.Ln(6)
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
