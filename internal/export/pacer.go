// Package export hands completed results to a Saver one at a time.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lookbook/internal/domain"
	"lookbook/internal/infra"
)

const (
	// DefaultDelay separates two consecutive saves.
	DefaultDelay = 500 * time.Millisecond
	// DefaultPrefix is the brand prefix of exported file names.
	DefaultPrefix = "yingying_gen"
)

// Saver receives one exported file.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, filename string, data []byte) error

func (f SaverFunc) Save(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// FileName is the download name of an item's result.
func FileName(prefix, id string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.png", prefix, id)
}

// Pacer triggers saves with a fixed pause between them.
type Pacer struct {
	Saver  Saver
	Prefix string
	// Delay between saves. Zero disables the pause.
	Delay  time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *infra.Logger
}

// ExportAll saves every completed item that carries result data, in order.
// Other items are skipped. The first save error stops the export and is
// returned with the number of files saved before it.
func (p *Pacer) ExportAll(ctx context.Context, items []domain.Item) (int, error) {
	if p.Saver == nil {
		return 0, fmt.Errorf("export: saver is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	saved := 0
	for _, it := range items {
		if !it.HasResult() {
			continue
		}
		if saved > 0 && p.Delay > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return saved, err
			}
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		name := FileName(p.Prefix, it.ID)
		if err := p.Saver.Save(ctx, name, it.Result.Data); err != nil {
			logger.Error().Err(err).Str("item_id", it.ID).Str("file", name).Msg("export: save failed")
			return saved, fmt.Errorf("export %s: %w", name, err)
		}
		saved++
		logger.Debug().Str("item_id", it.ID).Str("file", name).Msg("export: saved")
	}
	return saved, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
