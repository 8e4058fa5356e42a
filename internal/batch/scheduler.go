// Package batch runs image generation for a snapshot of items strictly one at
// a time, with a cooldown between requests to stay under the provider's rate
// ceiling.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lookbook/internal/domain"
	"lookbook/internal/infra"
	"lookbook/internal/providers/image"
)

// DefaultRequestDelay is the pause between two consecutive generation calls.
const DefaultRequestDelay = 2 * time.Second

// CredentialProvider acquires the key required by the generation service.
type CredentialProvider interface {
	Ensure(ctx context.Context) (string, error)
}

// ParamsSource exposes the live generation settings.
type ParamsSource interface {
	Params() domain.Params
}

// ItemUpdater applies lifecycle transitions; false means the item is gone.
type ItemUpdater interface {
	UpdateItem(id string, patch domain.Patch) bool
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options wires a Scheduler.
type Options struct {
	Generator   image.Generator
	Credentials CredentialProvider
	Params      ParamsSource
	Items       ItemUpdater
	// Delay is the cooldown between requests. Zero disables it.
	Delay time.Duration
	// Timeout bounds each generation call. Zero means no bound.
	Timeout time.Duration
	// ResultURL builds the displayable locator of a generated image.
	ResultURL func(id string) string
	Sleep     SleepFunc
	Logger    *infra.Logger
}

// Report summarises one batch run.
type Report struct {
	BatchID   string
	Attempted int
	Completed int
	Failed    int
	// Skipped counts items removed from the store while they were in flight.
	Skipped int
}

// Scheduler is single threaded: Run must not be called concurrently. The
// owning controller is responsible for that guard.
type Scheduler struct {
	generator   image.Generator
	credentials CredentialProvider
	params      ParamsSource
	items       ItemUpdater
	delay       time.Duration
	timeout     time.Duration
	resultURL   func(string) string
	sleep       SleepFunc
	logger      *infra.Logger
	active      atomic.Bool
}

// New builds a scheduler. Generator, Credentials, Params and Items are
// required.
func New(opts Options) (*Scheduler, error) {
	switch {
	case opts.Generator == nil:
		return nil, errors.New("batch: generator is required")
	case opts.Credentials == nil:
		return nil, errors.New("batch: credential provider is required")
	case opts.Params == nil:
		return nil, errors.New("batch: params source is required")
	case opts.Items == nil:
		return nil, errors.New("batch: item updater is required")
	case opts.Delay < 0 || opts.Timeout < 0:
		return nil, errors.New("batch: delay and timeout must not be negative")
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Scheduler{
		generator:   opts.Generator,
		credentials: opts.Credentials,
		params:      opts.Params,
		items:       opts.Items,
		delay:       opts.Delay,
		timeout:     opts.Timeout,
		resultURL:   opts.ResultURL,
		sleep:       sleep,
		logger:      logger,
	}, nil
}

// Active reports whether a batch is between credential acquisition and its
// final item.
func (s *Scheduler) Active() bool {
	return s.active.Load()
}

// Run processes snapshot in order. The credential is acquired once before any
// item is touched; failing that aborts the whole batch. Per-item failures are
// recorded on the item and never stop the batch. ctx is checked between
// items and during the cooldown; an in-flight call runs to completion or to
// its own timeout.
func (s *Scheduler) Run(ctx context.Context, snapshot []domain.Item) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	if len(snapshot) == 0 {
		return report, nil
	}
	log := s.logger.With().Str("batch_id", report.BatchID).Logger()

	credential, err := s.credentials.Ensure(ctx)
	if err != nil {
		log.Error().Err(err).Msg("batch: credential acquisition failed")
		if !errors.Is(err, domain.ErrCredentialUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
		}
		return report, err
	}

	s.active.Store(true)
	defer s.active.Store(false)
	log.Info().Int("items", len(snapshot)).Msg("batch: started")

	for i, item := range snapshot {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("remaining", len(snapshot)-i).Msg("batch: cancelled")
			return report, err
		}

		s.process(ctx, log, item, credential, &report)

		if i < len(snapshot)-1 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				log.Warn().Err(err).Int("remaining", len(snapshot)-i-1).Msg("batch: cancelled during cooldown")
				return report, err
			}
		}
	}

	log.Info().
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("batch: finished")
	return report, nil
}

func (s *Scheduler) process(ctx context.Context, log zerolog.Logger, item domain.Item, credential string, report *Report) {
	report.Attempted++
	ilog := log.With().Str("item_id", item.ID).Logger()
	s.items.UpdateItem(item.ID, domain.Processing())

	result, err := s.generate(ctx, item, credential)

	var patch domain.Patch
	if err != nil {
		ilog.Warn().Err(err).Msg("batch: generation failed")
		patch = domain.Failed(domain.ErrorMessage(err))
	} else {
		if s.resultURL != nil {
			result.URL = s.resultURL(item.ID)
		}
		patch = domain.Completed(result)
	}

	if !s.items.UpdateItem(item.ID, patch) {
		ilog.Debug().Msg("batch: item removed while in flight")
		report.Skipped++
		return
	}
	if err != nil {
		report.Failed++
		return
	}
	report.Completed++
	ilog.Info().Int("bytes", len(result.Data)).Msg("batch: item completed")
}

func (s *Scheduler) generate(ctx context.Context, item domain.Item, credential string) (res *domain.ResultImage, err error) {
	callCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, r)
		}
	}()

	res, err = s.generator.Generate(callCtx, image.Request{
		ItemID:     item.ID,
		Image:      item.Source.Data,
		MIME:       item.Source.MIME,
		Params:     s.params.Params(),
		Credential: credential,
	})
	if err != nil {
		if s.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation timed out after %s", s.timeout)
		}
		return nil, err
	}
	if res.Empty() {
		return nil, domain.ErrNoImageGenerated
	}
	out := *res
	return &out, nil
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
