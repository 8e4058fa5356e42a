package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"lookbook/internal/domain"
	"lookbook/internal/prompt"
)

const (
	syntheticWidth  = 768
	syntheticHeight = 1024
)

// Synthetic renders a deterministic 3:4 placeholder framing the source photo.
// It lets the session run offline without a credential round trip.
type Synthetic struct {
	Latency time.Duration
}

func NewSynthetic(latency time.Duration) *Synthetic {
	return &Synthetic{Latency: latency}
}

func (s *Synthetic) Generate(ctx context.Context, req Request) (*domain.ResultImage, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := deterministicSeed(req.ItemID, prompt.BuildFashion(req.Params), len(req.Image))
	canvas := imaging.New(syntheticWidth, syntheticHeight, colorFromSeed(seed, 0))
	stripe := imaging.New(syntheticWidth, syntheticHeight/12, colorFromSeed(seed, 1))
	for y := 0; y < syntheticHeight; y += 2 * stripe.Bounds().Dy() {
		canvas = imaging.Paste(canvas, stripe, stdimage.Pt(0, y))
	}

	if src, err := imaging.Decode(bytes.NewReader(req.Image), imaging.AutoOrientation(true)); err == nil {
		framed := imaging.Fit(src, syntheticWidth*3/4, syntheticHeight*3/4, imaging.Lanczos)
		canvas = imaging.PasteCenter(canvas, framed)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("synthetic: encode: %w", err)
	}
	return &domain.ResultImage{MIME: "image/png", Width: syntheticWidth, Height: syntheticHeight, Data: buf.Bytes()}, nil
}

func colorFromSeed(seed string, shift int) color.NRGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.NRGBA{
		R: mustParseHexByte(segment[0:2]),
		G: mustParseHexByte(segment[2:4]),
		B: mustParseHexByte(segment[4:6]),
		A: 255,
	}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ Generator = (*Synthetic)(nil)
