package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultPath    = "/api/chat"

	maxResponseBytes = 1 << 20
)

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL string
	Path    string
	// HTTPClient is used as is; its Timeout should be zero so that the
	// session decides how long a dispatch may take.
	HTTPClient *http.Client
}

// RESTClient talks to a chat backend over `POST {base}{path}` with a
// {"message": ...} body.
type RESTClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewRESTClient(cfg RESTConfig) *RESTClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &RESTClient{
		endpoint:   joinURL(base, path),
		httpClient: hc,
	}
}

// Endpoint returns the full URL requests are sent to.
func (c *RESTClient) Endpoint() string { return c.endpoint }

type chatRequest struct {
	Message string `json:"message"`
}

// Chat implements domain.Backend.
func (c *RESTClient) Chat(ctx context.Context, text string) (*domain.Reply, error) {
	log := observability.LoggerFromContext(ctx).With(zap.String("endpoint", c.endpoint))

	body, err := json.Marshal(chatRequest{Message: text})
	if err != nil {
		return nil, &domain.DispatchError{Kind: domain.KindApplicationError, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.DispatchError{Kind: domain.KindNetworkUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewDispatchError(domain.KindTimeout, err)
		}
		return nil, domain.NewDispatchError(domain.KindNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.DispatchError{Kind: domain.KindTimeout, Status: resp.StatusCode, Err: err}
		}
		return nil, &domain.DispatchError{Kind: domain.KindNetworkUnreachable, Status: resp.StatusCode, Err: err}
	}

	log.Debug("chat backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))

	if de := classifyStatus(resp.StatusCode, raw); de != nil {
		return nil, de
	}

	return decodeReply(raw)
}

// classifyStatus returns nil for 2xx statuses.
func classifyStatus(status int, raw []byte) *domain.DispatchError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &domain.DispatchError{Kind: domain.KindRateLimited, Status: status}
	case status >= 500:
		return &domain.DispatchError{Kind: domain.KindServerError, Status: status, Detail: errorDetail(raw)}
	default:
		return &domain.DispatchError{Kind: domain.KindUnexpectedStatus, Status: status, Detail: errorDetail(raw)}
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
