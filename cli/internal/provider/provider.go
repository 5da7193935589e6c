// Package provider hides the two commit message backends (a hosted API and a
// locally served model) behind one Generate call. The backend kind is
// resolved once from the model name when the Client is built.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Kind identifies a backend family.
type Kind int

const (
	// LocalModel is a model served by a local Ollama instance.
	LocalModel Kind = iota
	// HostedAPI is a model served by the OpenAI API.
	HostedAPI
)

func (k Kind) String() string {
	switch k {
	case HostedAPI:
		return "hosted"
	case LocalModel:
		return "local"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DefaultHostedPrefix marks model names routed to the hosted API.
const DefaultHostedPrefix = "gpt"

var (
	// ErrGeneration wraps transport and backend failures for a single request.
	ErrGeneration = errors.New("generation failed")
	// ErrMalformedResponse indicates the backend answered without any usable choice.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Request is one generation call. It has no identity beyond its field values.
type Request struct {
	System string
	User   string
	Model  string
}

// Generator produces raw (uncleaned) text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config is everything needed to build a Client. It is passed explicitly so
// tests and callers never depend on process-wide state.
type Config struct {
	Model        string
	HostedPrefix string // empty means DefaultHostedPrefix
	// OpenAIBaseURL is empty for the public endpoint.
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OllamaBaseURL string
	Temperature   float64
	// HTTPClient is used by both variants; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// Resolve returns the backend kind for model.
func Resolve(model, hostedPrefix string) Kind {
	if hostedPrefix == "" {
		hostedPrefix = DefaultHostedPrefix
	}
	if strings.HasPrefix(model, hostedPrefix) {
		return HostedAPI
	}
	return LocalModel
}

// Client is a Generator bound to one backend.
type Client struct {
	kind        Kind
	model       string
	temperature float64
	llm         llms.Model
}

// New builds the backend for cfg.Model.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("provider: model required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	kind := Resolve(cfg.Model, cfg.HostedPrefix)

	var (
		llm llms.Model
		err error
	)
	switch kind {
	case HostedAPI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("provider: model %q needs an OpenAI API key (set OPENAI_API_KEY)", cfg.Model)
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		opts := []ollama.Option{
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		}
		if cfg.OllamaBaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaBaseURL))
		}
		llm, err = ollama.New(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("provider: create %s backend: %w", kind, err)
	}

	log.Debug().
		Str("model", cfg.Model).
		Stringer("kind", kind).
		Float64("temperature", cfg.Temperature).
		Msg("provider ready")

	return &Client{kind: kind, model: cfg.Model, temperature: cfg.Temperature, llm: llm}, nil
}

// Kind reports which backend the client talks to.
func (c *Client) Kind() Kind { return c.kind }

// Generate sends the (system, user) pair and returns the last choice's text.
// req.Model defaults to the client's model.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithModel(model),
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		if errors.Is(err, openai.ErrEmptyResponse) || errors.Is(err, ollama.ErrEmptyResponse) {
			return "", fmt.Errorf("%w: %s %s: %w", ErrMalformedResponse, c.kind, model, err)
		}
		return "", fmt.Errorf("%w: %s %s: %w", ErrGeneration, c.kind, model, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[len(resp.Choices)-1] == nil {
		return "", fmt.Errorf("%w: %s %s returned no choices", ErrMalformedResponse, c.kind, model)
	}
	text := resp.Choices[len(resp.Choices)-1].Content
	log.Trace().Str("model", model).Str("raw", text).Msg("provider response")
	return text, nil
}
