package firestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

func TestDispatchDocMapping(t *testing.T) {
	rec := &domain.DispatchRecord{
		ID:        "d-1",
		SessionID: "s-1",
		StartedAt: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		Duration:  2*time.Second + 250*time.Microsecond,
		Outcome:   string(domain.KindServerError),
		Status:    503,
		Stale:     true,
	}

	got := fromDispatchDoc("d-1", toDispatchDoc(rec))
	assert.Equal(t, rec, got)
}
