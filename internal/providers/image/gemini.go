package image

import (
	"context"

	"lookbook/internal/domain"
	"lookbook/internal/prompt"
	"lookbook/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*domain.ResultImage, error) {
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		APIKey:      req.Credential,
		Prompt:      prompt.BuildFashion(req.Params),
		Image:       req.Image,
		MIME:        req.MIME,
		AspectRatio: prompt.AspectRatio,
		ImageSize:   prompt.ImageSize,
		RequestID:   req.ItemID,
	})
	if err != nil {
		return nil, err
	}
	if asset == nil || len(asset.Data) == 0 {
		return nil, domain.ErrNoImageGenerated
	}
	return &domain.ResultImage{MIME: asset.Format, Width: asset.Width, Height: asset.Height, Data: asset.Data}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
