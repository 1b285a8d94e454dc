package main

import (
	"testing"
	"time"
)

func sampleReports() []Report {
	return []Report{
		{ID: "3", UserName: "priya", Category: "Plastic", LocationString: defaultMockPlaceName, Status: statusPending, Timestamp: 1717243200},
		{ID: "2", UserName: "arun", Category: "Organic", LocationString: locationDeniedMessage, Status: statusResolved, Timestamp: 1717239600},
		{ID: "1", UserName: "kavi", Category: "Metal", LocationString: defaultMockPlaceName, Status: statusPending, Timestamp: 1717236000},
	}
}

func TestBuildAdminDashboard_Counts(t *testing.T) {
	dashboard := buildAdminDashboard(sampleReports(), time.Now())

	if dashboard.Total != 3 {
		t.Fatalf("total = %d, want 3", dashboard.Total)
	}
	if dashboard.Pending != 2 {
		t.Fatalf("pending = %d, want 2", dashboard.Pending)
	}
	if len(dashboard.Reports) != 3 {
		t.Fatalf("rows = %d, want 3", len(dashboard.Reports))
	}
}

func TestBuildAdminDashboard_RecomputesAfterNewSubmission(t *testing.T) {
	reports := sampleReports()
	before := buildAdminDashboard(reports, time.Now())

	reports = append([]Report{{ID: "4", UserName: "mani", Category: "E-waste", Status: statusPending, Timestamp: 1717246800}}, reports...)
	after := buildAdminDashboard(reports, time.Now())

	if after.Total != before.Total+1 {
		t.Fatalf("total = %d, want %d", after.Total, before.Total+1)
	}
	if after.Pending != before.Pending+1 {
		t.Fatalf("pending = %d, want %d", after.Pending, before.Pending+1)
	}
}

func TestBuildAdminDashboard_PatchesMalformedRows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reports := []Report{
		{ID: "9", Status: statusPending, Timestamp: 0, Category: "", UserName: ""},
	}

	dashboard := buildAdminDashboard(reports, now)
	if len(dashboard.Reports) != 1 {
		t.Fatal("a malformed report must still produce a row")
	}

	row := dashboard.Reports[0]
	if row.Category != "Unknown" {
		t.Fatalf("category = %q, want Unknown", row.Category)
	}
	if row.Timestamp != now.Unix() {
		t.Fatalf("timestamp = %d, want display fallback %d", row.Timestamp, now.Unix())
	}
	if row.UserName != "Citizen" {
		t.Fatalf("userName = %q, want Citizen", row.UserName)
	}
	if row.ReportedAt == "" {
		t.Fatal("reportedAt must always be set")
	}
}

func TestBuildAdminDashboard_Empty(t *testing.T) {
	dashboard := buildAdminDashboard(nil, time.Now())
	if dashboard.Total != 0 || dashboard.Pending != 0 {
		t.Fatalf("empty input must aggregate to zero, got %+v", dashboard)
	}
	if dashboard.Reports == nil {
		t.Fatal("reports must be an empty slice, not nil")
	}
}
