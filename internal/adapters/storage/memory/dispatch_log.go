package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

const defaultDispatchCapacity = 500

// DispatchLog keeps the most recent dispatch records in a fixed-size ring.
// It is NOT persistent.
type DispatchLog struct {
	mu      sync.RWMutex
	records []*domain.DispatchRecord
	next    int
	full    bool
}

// NewDispatchLog creates a ring holding up to capacity records.
// If capacity <= 0, a default of 500 is used.
func NewDispatchLog(capacity int) *DispatchLog {
	if capacity <= 0 {
		capacity = defaultDispatchCapacity
	}
	return &DispatchLog{
		records: make([]*domain.DispatchRecord, capacity),
	}
}

func (l *DispatchLog) RecordDispatch(_ context.Context, rec *domain.DispatchRecord) error {
	if rec == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[l.next] = rec
	l.next = (l.next + 1) % len(l.records)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// RecentDispatches returns the last `limit` records, newest first.
// If limit <= 0, returns all.
func (l *DispatchLog) RecentDispatches(_ context.Context, limit int) ([]*domain.DispatchRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.records)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]*domain.DispatchRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.records)) % len(l.records)
		out = append(out, l.records[idx])
	}
	return out, nil
}
