package studio

import (
	"fmt"

	"lookbook/internal/infra"
	"lookbook/internal/infra/credentials"
	"lookbook/internal/providers/genai"
	"lookbook/internal/providers/image"
	"lookbook/internal/session"
)

// NewGenerator picks the image provider named by cfg.ImageProvider.
func NewGenerator(cfg *infra.Config, logger *infra.Logger) (image.Generator, error) {
	switch cfg.ImageProvider {
	case infra.ProviderGemini, "":
		client := genai.NewClient(genai.Options{
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Logger:  logger,
		})
		return image.NewGeminiGenerator(client), nil
	case infra.ProviderSynthetic:
		return image.NewSynthetic(0), nil
	default:
		return nil, fmt.Errorf("studio: unknown image provider %q", cfg.ImageProvider)
	}
}

// NewCredentialStore looks the key up in the environment, then in the key
// file. prompter may be nil.
func NewCredentialStore(cfg *infra.Config, prompter credentials.Prompter) *credentials.Store {
	return credentials.NewStore(prompter,
		credentials.EnvSource(credentials.EnvGeminiAPIKey),
		credentials.FileSource(cfg.GeminiKeyFile, credentials.EnvGeminiAPIKey),
	)
}

// NewFromConfig builds a controller with an empty session.
func NewFromConfig(cfg *infra.Config, logger *infra.Logger, prompter credentials.Prompter) (*Controller, error) {
	generator, err := NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	creds := NewCredentialStore(cfg, prompter)
	if cfg.ImageProvider == infra.ProviderSynthetic {
		// The placeholder renderer never sends the key anywhere.
		_ = creds.Select("synthetic")
	}
	return New(Options{
		Store:          session.NewStore(session.Options{}),
		Generator:      generator,
		Credentials:    creds,
		RequestDelay:   cfg.RequestDelay,
		Timeout:        cfg.GenerationTimeout,
		DownloadPrefix: cfg.DownloadPrefix,
		PreviewMaxPx:   cfg.PreviewMaxPx,
		Logger:         logger,
	})
}
