package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore-backed dispatch log for projectID.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, errors.New("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) dispatchesCol() *firestore.CollectionRef {
	return s.client.Collection("dispatches")
}

func (s *Store) dispatchDoc(id domain.DispatchID) *firestore.DocumentRef {
	return s.dispatchesCol().Doc(string(id))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type dispatchDoc struct {
	SessionID  string    `firestore:"session_id"`
	StartedAt  time.Time `firestore:"started_at"`
	DurationUS int64     `firestore:"duration_us"`
	Outcome    string    `firestore:"outcome"`
	Status     int       `firestore:"status"`
	Stale      bool      `firestore:"stale"`
}

func toDispatchDoc(rec *domain.DispatchRecord) dispatchDoc {
	return dispatchDoc{
		SessionID:  string(rec.SessionID),
		StartedAt:  rec.StartedAt,
		DurationUS: rec.Duration.Microseconds(),
		Outcome:    rec.Outcome,
		Status:     rec.Status,
		Stale:      rec.Stale,
	}
}

func fromDispatchDoc(id string, doc dispatchDoc) *domain.DispatchRecord {
	return &domain.DispatchRecord{
		ID:        domain.DispatchID(id),
		SessionID: domain.SessionID(doc.SessionID),
		StartedAt: doc.StartedAt,
		Duration:  time.Duration(doc.DurationUS) * time.Microsecond,
		Outcome:   doc.Outcome,
		Status:    doc.Status,
		Stale:     doc.Stale,
	}
}

// ─────────────────────────────────────────
// DispatchRecorder implementation
// ─────────────────────────────────────────

func (s *Store) RecordDispatch(ctx context.Context, rec *domain.DispatchRecord) error {
	if rec == nil {
		return nil
	}

	_, err := s.dispatchDoc(rec.ID).Create(ctx, toDispatchDoc(rec))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Errorf("dispatch %s already recorded", rec.ID)
		}
		return errors.Wrap(err, "firestore RecordDispatch")
	}
	return nil
}

func (s *Store) RecentDispatches(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	q := s.dispatchesCol().OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.DispatchRecord
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, errors.Wrap(err, "firestore RecentDispatches")
		}

		var doc dispatchDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "decode dispatchDoc")
		}

		out = append(out, fromDispatchDoc(snap.Ref.ID, doc))
	}
	return out, nil
}
