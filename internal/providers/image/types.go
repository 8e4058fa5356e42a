package image

import (
	"context"

	"lookbook/internal/domain"
)

// Request is one generation attempt for a single item.
type Request struct {
	ItemID     string
	Image      []byte
	MIME       string
	Params     domain.Params
	Credential string
}

// Generator is the contract implemented by all image providers. It returns
// either a non-empty result or an error; it never returns both.
type Generator interface {
	Generate(ctx context.Context, req Request) (*domain.ResultImage, error)
}
