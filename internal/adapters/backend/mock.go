package backend

import (
	"context"
	"fmt"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

// Mock answers every message locally. Useful for dev and demos.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Chat(ctx context.Context, text string) (*domain.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Reply{
		Text: fmt.Sprintf("You asked: %q. The real assistant is not connected, so this is an echo.", text),
	}, nil
}
