package llm

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultModel        = "gpt-5"
	defaultHTTPTimeout  = 5 * time.Minute
	defaultProbeTimeout = 10 * time.Second
)

// defaultFallbacks is the fixed chain tried after the requested model.
func defaultFallbacks() []string {
	return []string{"gpt-4o", "gpt-4o-mini"}
}

// Config carries everything the gateway needs. All values are resolved at
// construction; nothing in the streaming path reads ambient state.
type Config struct {
	// APIKey authenticates against the upstream API. Required.
	APIKey string

	// BaseURL is the upstream API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// FallbackModels are tried in order after the requested model.
	FallbackModels []string

	// ProbeModel is the fixed model used by connectivity probes.
	ProbeModel string

	// HTTPTimeout bounds each upstream call when HTTPClient is nil.
	HTTPTimeout time.Duration

	// ProbeTimeout bounds each individual probe attempt.
	ProbeTimeout time.Duration

	// HTTPClient overrides the transport. Nil builds one from HTTPTimeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.DefaultModel == "" {
		c.DefaultModel = defaultModel
	}
	if c.FallbackModels == nil {
		c.FallbackModels = defaultFallbacks()
	}
	if c.ProbeModel == "" {
		c.ProbeModel = c.DefaultModel
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.HTTPTimeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
