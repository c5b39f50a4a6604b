package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

// replyPayload is the canonical success body:
//
//	{"response": "...", "sources": [{"content": "...", "metadata": {...}}], "success": true, "error": "..."}
//
// Pointers distinguish absent fields from zero values.
type replyPayload struct {
	Response *string         `json:"response"`
	Sources  []sourcePayload `json:"sources"`
	Success  *bool           `json:"success"`
	Error    *string         `json:"error"`
}

type sourcePayload struct {
	Content  *string        `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// errorPayload covers the error bodies seen from FastAPI style backends.
type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

var errInvalidResponse = errors.New("the assistant returned an invalid response")

// decodeReply validates a 2xx body and turns it into a Reply. Any shape
// other than the canonical one is an application error.
func decodeReply(raw []byte) (*domain.Reply, error) {
	var p replyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalid(fmt.Errorf("decode body: %w", err))
	}

	if p.Success != nil && !*p.Success {
		de := &domain.DispatchError{Kind: domain.KindApplicationError}
		if p.Error != nil {
			de.Detail = strings.TrimSpace(*p.Error)
		}
		return nil, de
	}

	if p.Response == nil {
		return nil, invalid(errors.New(`missing "response" field`))
	}
	// Kept verbatim: leading indentation is significant in markdown.
	text := *p.Response
	if strings.TrimSpace(text) == "" {
		return nil, invalid(errors.New(`empty "response" field`))
	}

	var sources []domain.Source
	for i, sp := range p.Sources {
		if sp.Content == nil {
			return nil, invalid(fmt.Errorf(`source %d: missing "content" field`, i))
		}
		sources = append(sources, domain.Source{
			Content:  *sp.Content,
			Metadata: sp.Metadata,
		})
	}

	return &domain.Reply{Text: text, Sources: sources}, nil
}

func invalid(err error) *domain.DispatchError {
	return &domain.DispatchError{
		Kind:   domain.KindApplicationError,
		Detail: "The assistant returned an invalid response.",
		Err:    fmt.Errorf("%w: %w", errInvalidResponse, err),
	}
}

// errorDetail extracts a short error text from a non-2xx body, if any.
func errorDetail(raw []byte) string {
	var p errorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	if p.Error != "" {
		return p.Error
	}
	var s string
	if err := json.Unmarshal(p.Detail, &s); err == nil {
		return s
	}
	return ""
}
