package main

import (
	"strings"
	"sync"

	"github.com/h2non/filetype"
)

// ReportDraft is the server-side staging area a citizen fills before
// submitting a report. A draft becomes submittable only once it holds
// both an image and a classification.
type ReportDraft struct {
	Image          *ImageUpload
	Classification *Classification
	LocationString string
	Coords         *Coordinates
}

// SetImage attaches an image to the draft. On rejection the draft is
// left untouched, so a previously attached valid image survives a bad
// re-upload attempt.
func (d *ReportDraft) SetImage(upload ImageUpload) error {
	if !strings.HasPrefix(upload.MimeType, "image/") {
		return &ValidationError{Field: "image", Reason: "file is not an image"}
	}
	if len(upload.Bytes) == 0 {
		return &ValidationError{Field: "image", Reason: "image data is empty"}
	}
	if !filetype.IsImage(upload.Bytes) {
		return &ValidationError{Field: "image", Reason: "file content is not a recognized image format"}
	}
	d.Image = &upload
	return nil
}

// SetClassification overwrites any previous classification. A manual
// category pick replaces an automatic one and vice versa.
func (d *ReportDraft) SetClassification(c Classification) {
	d.Classification = &c
}

func (d *ReportDraft) SetLocation(locationString string, coords *Coordinates) {
	d.LocationString = locationString
	d.Coords = coords
}

// CanSubmit reports whether the draft holds everything a submission
// requires. Location is not part of the gate; a missing location
// degrades to a placeholder message instead of blocking submission.
func (d *ReportDraft) CanSubmit() bool {
	return d.Image != nil && d.Classification != nil
}

// Reset clears the image and classification but keeps the resolved
// location, which stays valid across retakes.
func (d *ReportDraft) Reset() {
	d.Image = nil
	d.Classification = nil
}

// LocationDisplay returns the string to show for the draft's location,
// substituting the unsupported-geolocation message when nothing was
// ever resolved.
func (d *ReportDraft) LocationDisplay() string {
	if d.LocationString == "" {
		return locationUnsupportedMessage
	}
	return d.LocationString
}

// draftTable holds the per-user drafts. All access goes through its
// methods so locking stays internal.
type draftTable struct {
	mu     sync.Mutex
	drafts map[string]*ReportDraft
}

func newDraftTable() *draftTable {
	return &draftTable{drafts: make(map[string]*ReportDraft)}
}

func (t *draftTable) draftLocked(userID string) *ReportDraft {
	d, ok := t.drafts[userID]
	if !ok {
		d = &ReportDraft{}
		t.drafts[userID] = d
	}
	return d
}

func (t *draftTable) SetImage(userID string, upload ImageUpload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draftLocked(userID).SetImage(upload)
}

func (t *draftTable) SetClassification(userID string, c Classification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draftLocked(userID).SetClassification(c)
}

func (t *draftTable) SetLocation(userID string, locationString string, coords *Coordinates) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draftLocked(userID).SetLocation(locationString, coords)
}

func (t *draftTable) Reset(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draftLocked(userID).Reset()
}

// Snapshot returns a copy of the user's draft safe to read without the
// table lock.
func (t *draftTable) Snapshot(userID string) ReportDraft {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.draftLocked(userID)
	snap := ReportDraft{
		LocationString: d.LocationString,
	}
	if d.Image != nil {
		img := *d.Image
		snap.Image = &img
	}
	if d.Classification != nil {
		c := *d.Classification
		snap.Classification = &c
	}
	if d.Coords != nil {
		coords := *d.Coords
		snap.Coords = &coords
	}
	return snap
}
