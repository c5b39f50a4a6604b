package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	// Project and Location select Vertex AI. With an empty Project the
	// Gemini API is used and APIKey is required.
	Project  string
	Location string
	APIKey   string
	Model    string

	Owner     string
	Portfolio string
}

// GeminiClient answers chat messages directly with a Gemini model instead of
// going through a REST backend.
type GeminiClient struct {
	models    generator
	modelName string
	system    string
}

// generator is the part of genai.Models the client needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a domain.Backend based on Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch {
	case cfg.Project != "":
		if cfg.Location == "" {
			return nil, fmt.Errorf("gemini: location is required with a project")
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	default:
		return nil, fmt.Errorf("gemini: either project/location or an API key must be set")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models generator, cfg GeminiConfig) *GeminiClient {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiClient{
		models:    models,
		modelName: modelName,
		system:    BuildSystemPrompt(cfg.Owner, cfg.Portfolio),
	}
}

// Chat implements domain.Backend using Gemini.
func (g *GeminiClient) Chat(ctx context.Context, text string) (*domain.Reply, error) {
	log := observability.LoggerFromContext(ctx).With(zap.String("model", g.modelName))

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	temp := float32(0.3)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.system, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   2048,
	}

	res, err := g.models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		de := classifyGeminiError(err)
		log.Debug("gemini generate content failed", zap.String("kind", string(de.Kind)), zap.Error(err))
		return nil, de
	}

	reply := strings.TrimSpace(res.Text())
	if reply == "" {
		return nil, &domain.DispatchError{
			Kind: domain.KindApplicationError,
			Err:  errors.New("gemini returned empty text"),
		}
	}

	return &domain.Reply{Text: reply}, nil
}

func classifyGeminiError(err error) *domain.DispatchError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.NewDispatchError(domain.KindTimeout, err)
		}
		return domain.NewDispatchError(domain.KindNetworkUnreachable, err)
	}

	de := &domain.DispatchError{Status: apiErr.Code, Err: err}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		de.Kind = domain.KindRateLimited
	case apiErr.Code >= 500:
		de.Kind = domain.KindServerError
	default:
		de.Kind = domain.KindUnexpectedStatus
		de.Detail = apiErr.Message
	}
	return de
}
