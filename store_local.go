package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const localStoreSlotName = "demo_reports.json"

// localReportStore is the fallback for environments without a remote
// backend. The whole list lives in one JSON slot file, newest first,
// images inlined as data URIs. Last write wins; acceptable only
// because this is a single-user fallback with a tight quota.
type localReportStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func newLocalReportStore(dataRoot string) (*localReportStore, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, err
	}
	return &localReportStore{
		path: filepath.Join(dataRoot, localStoreSlotName),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *localReportStore) Submit(ctx context.Context, input ReportInput) (Report, error) {
	if err := validateReportInput(input); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.load()
	if err != nil {
		return Report{}, &PersistenceError{Op: "load", Err: err}
	}

	now := s.now()
	report := Report{
		ID:             nextLocalID(reports, now.UnixMilli()),
		UserID:         input.UserID,
		UserName:       input.UserName,
		ImageURL:       buildImageDataURI(input.Image.MimeType, input.Image.Bytes),
		Category:       input.Category,
		LocationString: input.LocationString,
		Coords:         input.Coords,
		Notes:          input.Notes,
		Status:         statusPending,
		Timestamp:      now.Unix(),
	}

	reports = append([]Report{report}, reports...)
	if err := s.save(reports); err != nil {
		return Report{}, &PersistenceError{Op: "save", Err: err}
	}
	return report, nil
}

func (s *localReportStore) ListAll(ctx context.Context) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.load()
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return reports, nil
}

func (s *localReportStore) MarkResolved(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.load()
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}
	for i := range reports {
		if reports[i].ID == id {
			reports[i].Status = statusResolved
			if err := s.save(reports); err != nil {
				return &PersistenceError{Op: "save", Err: err}
			}
			return nil
		}
	}
	return errReportNotFound
}

func (s *localReportStore) Close(ctx context.Context) error { return nil }

func (s *localReportStore) load() ([]Report, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Report{}, nil
		}
		return nil, err
	}
	if len(content) == 0 {
		return []Report{}, nil
	}
	var reports []Report
	if err := json.Unmarshal(content, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *localReportStore) save(reports []Report) error {
	encoded, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, encoded, 0o644)
}

// nextLocalID derives an id from the submission time, bumping the
// millisecond value until it no longer collides with an existing
// report so rapid sequential submissions stay unique.
func nextLocalID(reports []Report, unixMilli int64) string {
	taken := make(map[string]struct{}, len(reports))
	for _, report := range reports {
		taken[report.ID] = struct{}{}
	}
	for {
		candidate := strconv.FormatInt(unixMilli, 10)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
		unixMilli++
	}
}
