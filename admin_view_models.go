package main

import "time"

// AdminReportRow is a report shaped for the admin dashboard table.
type AdminReportRow struct {
	ID             string `json:"id"`
	UserName       string `json:"userName"`
	ImageURL       string `json:"imageUrl"`
	Category       string `json:"category"`
	LocationString string `json:"locationString"`
	Notes          string `json:"notes,omitempty"`
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"`
	ReportedAt     string `json:"reportedAt"`
}

type AdminDashboard struct {
	Total   int              `json:"total"`
	Pending int              `json:"pending"`
	Reports []AdminReportRow `json:"reports"`
}

// buildAdminDashboard aggregates reports for the admin view. A
// malformed report never fails the whole dashboard; missing fields are
// patched with display fallbacks row by row.
func buildAdminDashboard(reports []Report, now time.Time) AdminDashboard {
	rows := make([]AdminReportRow, 0, len(reports))
	pending := 0
	for _, report := range reports {
		if report.Status == statusPending {
			pending++
		}

		category := report.Category
		if category == "" {
			category = "Unknown"
		}
		timestamp := report.Timestamp
		if timestamp <= 0 {
			timestamp = now.Unix()
		}
		userName := report.UserName
		if userName == "" {
			userName = "Citizen"
		}

		rows = append(rows, AdminReportRow{
			ID:             report.ID,
			UserName:       userName,
			ImageURL:       report.ImageURL,
			Category:       category,
			LocationString: report.LocationString,
			Notes:          report.Notes,
			Status:         report.Status,
			Timestamp:      timestamp,
			ReportedAt:     time.Unix(timestamp, 0).UTC().Format(time.RFC3339),
		})
	}

	return AdminDashboard{
		Total:   len(reports),
		Pending: pending,
		Reports: rows,
	}
}
