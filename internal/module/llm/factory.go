package llm

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jobhunter/server/internal/infra/config"
	"go.uber.org/zap"
)

// New builds the configured provider wrapped in a circuit breaker.
func New(cfg config.AIConfig, client *http.Client, logger *zap.Logger, recorder Recorder) (Provider, error) {
	var p Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		p = NewGeminiClient(GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.Model,
			APIURL:         cfg.APIURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			RetryBaseDelay: cfg.RetryBaseDelay,
		}, client, logger, recorder)
	case ProviderMock:
		p = NewCannedProvider()
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}

	return NewBreakerProvider(p, BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      cfg.CircuitTimeout,
	}, logger), nil
}
