package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const reportsCollection = "reports"

// remoteReportStore persists reports as documents in a remote
// collection, with image bytes handed to object storage first. If the
// document insert fails after the upload completed, the uploaded
// object is removed again so callers never observe a partial write.
type remoteReportStore struct {
	docs    DocumentStore
	objects ObjectStorage
	log     *slog.Logger
	now     func() time.Time
}

func newRemoteReportStore(docs DocumentStore, objects ObjectStorage, logger *slog.Logger) *remoteReportStore {
	return &remoteReportStore{docs: docs, objects: objects, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *remoteReportStore) Submit(ctx context.Context, input ReportInput) (Report, error) {
	if err := validateReportInput(input); err != nil {
		return Report{}, err
	}

	now := s.now()
	// The uuid suffix keeps two uploads in the same millisecond from
	// sharing an object key, which would let a failed insert's rollback
	// delete a committed report's image.
	key := fmt.Sprintf("%s_%d_%s", input.UserID, now.UnixMilli(), uuid.NewString())

	imageURL, err := s.objects.Put(ctx, key, input.Image.Bytes, input.Image.MimeType)
	if err != nil {
		return Report{}, &PersistenceError{Op: "upload", Err: err}
	}

	report := Report{
		UserID:         input.UserID,
		UserName:       input.UserName,
		ImageURL:       imageURL,
		Category:       input.Category,
		LocationString: input.LocationString,
		Coords:         input.Coords,
		Notes:          input.Notes,
		Status:         statusPending,
		Timestamp:      now.Unix(),
	}

	id, err := s.docs.Insert(ctx, reportsCollection, reportToDocument(report))
	if err != nil {
		if deleteErr := s.objects.Delete(context.WithoutCancel(ctx), key); deleteErr != nil {
			s.log.Error("failed to roll back uploaded image", "key", key, "err", deleteErr)
		}
		return Report{}, &PersistenceError{Op: "insert", Err: err}
	}

	report.ID = id
	return report, nil
}

func (s *remoteReportStore) ListAll(ctx context.Context) ([]Report, error) {
	docs, err := s.docs.QueryAll(ctx, reportsCollection, "timestamp", true)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	reports := make([]Report, 0, len(docs))
	for _, doc := range docs {
		reports = append(reports, reportFromDocument(doc))
	}
	return reports, nil
}

func (s *remoteReportStore) MarkResolved(ctx context.Context, id string) error {
	if err := s.docs.UpdateField(ctx, reportsCollection, id, "status", statusResolved); err != nil {
		if errors.Is(err, errDocumentNotFound) {
			return errReportNotFound
		}
		return &PersistenceError{Op: "update", Err: err}
	}
	return nil
}

func (s *remoteReportStore) Close(ctx context.Context) error {
	return s.docs.Close(ctx)
}

func reportToDocument(report Report) Document {
	doc := Document{
		"userId":         report.UserID,
		"userName":       report.UserName,
		"imageUrl":       report.ImageURL,
		"category":       report.Category,
		"locationString": report.LocationString,
		"notes":          report.Notes,
		"status":         report.Status,
		"timestamp":      report.Timestamp,
	}
	if report.Coords != nil {
		doc["coords"] = map[string]any{"lat": report.Coords.Lat, "lng": report.Coords.Lng}
	}
	return doc
}

func reportFromDocument(doc Document) Report {
	report := Report{
		ID:             documentString(doc, "id"),
		UserID:         documentString(doc, "userId"),
		UserName:       documentString(doc, "userName"),
		ImageURL:       documentString(doc, "imageUrl"),
		Category:       documentString(doc, "category"),
		LocationString: documentString(doc, "locationString"),
		Notes:          documentString(doc, "notes"),
		Status:         documentString(doc, "status"),
		Timestamp:      documentInt64(doc, "timestamp"),
	}
	if coords, ok := documentMap(doc, "coords"); ok {
		lat, latOK := documentFloat64(coords, "lat")
		lng, lngOK := documentFloat64(coords, "lng")
		if latOK && lngOK {
			report.Coords = &Coordinates{Lat: lat, Lng: lng}
		}
	}
	return report
}
