// Package studio ties the item store, the generation settings, the credential
// store and the batch scheduler together behind one session controller.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lookbook/internal/batch"
	"lookbook/internal/domain"
	"lookbook/internal/export"
	"lookbook/internal/infra"
	"lookbook/internal/infra/credentials"
	"lookbook/internal/media"
	"lookbook/internal/prompt"
	"lookbook/internal/providers/image"
	"lookbook/internal/session"
)

// Options wires a Controller. Store, Generator and Credentials are required.
type Options struct {
	Store       *session.Store
	Generator   image.Generator
	Credentials *credentials.Store
	// RequestDelay is the cooldown between generation calls. Zero disables it.
	RequestDelay time.Duration
	// Timeout bounds a single generation call. Zero means no bound.
	Timeout time.Duration
	// DownloadPrefix is the brand prefix of result file names.
	DownloadPrefix string
	PreviewMaxPx   int
	ResultURL      func(id string) string
	Sleep          batch.SleepFunc
	Logger         *infra.Logger
}

// Rejection names an upload that did not become an item.
type Rejection struct {
	Name string
	Err  error
}

// State is everything the presentation layer renders.
type State struct {
	Items              []domain.Item
	Params             domain.Params
	BatchActive        bool
	CanGenerate        bool
	CanDownloadAll     bool
	CredentialVerified bool
	LastBatchError     string
}

// Controller is safe for concurrent use.
type Controller struct {
	store     *session.Store
	creds     *credentials.Store
	scheduler *batch.Scheduler
	prefix    string
	previewPx int
	sleep     batch.SleepFunc
	logger    *infra.Logger

	paramsMu sync.RWMutex
	params   domain.Params

	running atomic.Bool
	runs    sync.WaitGroup

	errMu   sync.Mutex
	lastErr string
}

// New builds a controller with default settings.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("studio: store is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("studio: credential store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	resultURL := opts.ResultURL
	if resultURL == nil {
		resultURL = session.DefaultResultURL
	}
	c := &Controller{
		store:     opts.Store,
		creds:     opts.Credentials,
		prefix:    opts.DownloadPrefix,
		previewPx: opts.PreviewMaxPx,
		sleep:     opts.Sleep,
		logger:    logger,
		params:    domain.DefaultParams(),
	}
	if c.prefix == "" {
		c.prefix = export.DefaultPrefix
	}
	scheduler, err := batch.New(batch.Options{
		Generator:   opts.Generator,
		Credentials: opts.Credentials,
		Params:      c,
		Items:       opts.Store,
		Delay:       opts.RequestDelay,
		Timeout:     opts.Timeout,
		ResultURL:   resultURL,
		Sleep:       opts.Sleep,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("studio: %w", err)
	}
	c.scheduler = scheduler
	return c, nil
}

// AddFiles turns every image among files into a new idle item. Files that are
// not images are reported back and leave the store untouched.
func (c *Controller) AddFiles(files []media.File) ([]domain.Item, []Rejection) {
	sources := make([]domain.SourceImage, 0, len(files))
	var rejected []Rejection
	for _, f := range files {
		src, err := media.Prepare(f, c.previewPx)
		if err != nil {
			rejected = append(rejected, Rejection{Name: f.Name, Err: err})
			continue
		}
		sources = append(sources, src)
	}
	added := c.store.AddItems(sources)
	if len(rejected) > 0 {
		c.logger.Info().Int("rejected", len(rejected)).Msg("studio: ignored non-image uploads")
	}
	if len(added) > 0 {
		c.logger.Debug().Int("added", len(added)).Msg("studio: items added")
	}
	return added, rejected
}

// Remove deletes an item. Removing an item that is being generated is
// allowed; its result is discarded when it arrives.
func (c *Controller) Remove(id string) bool {
	return c.store.RemoveItem(id)
}

// Params returns the current generation settings.
func (c *Controller) Params() domain.Params {
	c.paramsMu.RLock()
	defer c.paramsMu.RUnlock()
	return c.params
}

// SetParams replaces the generation settings. Changes apply to every request
// issued afterwards, including later items of a running batch.
func (c *Controller) SetParams(p domain.Params) (domain.Params, error) {
	gender, err := domain.ParseGender(string(p.Gender))
	if err != nil {
		return domain.Params{}, err
	}
	p = domain.Params{Gender: gender, Remarks: prompt.NormalizeRemarks(p.Remarks)}
	c.paramsMu.Lock()
	c.params = p
	c.paramsMu.Unlock()
	return p, nil
}

// ChangeCredential replaces the session API key.
func (c *Controller) ChangeCredential(key string) error {
	if err := c.creds.Select(key); err != nil {
		return err
	}
	c.logger.Info().Msg("studio: api key changed")
	return nil
}

// ResetCredential forgets the session API key; the next batch selects one
// again.
func (c *Controller) ResetCredential() {
	c.creds.Reset()
	c.logger.Info().Msg("studio: api key reset")
}

// Run is a handle on one started batch.
type Run struct {
	items  int
	done   chan struct{}
	report batch.Report
	err    error
}

// Items is the size of the batch snapshot.
func (r *Run) Items() int { return r.items }

// Done is closed when the batch has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the batch has finished or ctx is done.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report is valid once Done is closed.
func (r *Run) Report() batch.Report {
	<-r.done
	return r.report
}

// Err is the batch-level failure, valid once Done is closed.
func (r *Run) Err() error {
	<-r.done
	return r.err
}

// StartBatch snapshots the eligible items and processes them in the
// background. ctx bounds the whole batch, so it must outlive the caller's
// request. Only one batch runs at a time.
func (c *Controller) StartBatch(ctx context.Context) (*Run, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, domain.ErrBatchActive
	}
	snapshot := c.store.Eligible()
	if len(snapshot) == 0 {
		c.running.Store(false)
		return nil, domain.ErrNothingToGenerate
	}
	c.setLastError("")

	run := &Run{items: len(snapshot), done: make(chan struct{})}
	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		defer close(run.done)
		defer c.running.Store(false)

		run.report, run.err = c.scheduler.Run(ctx, snapshot)
		if run.err != nil && !errors.Is(run.err, context.Canceled) {
			c.logger.Error().Err(run.err).Msg("studio: batch aborted")
			c.setLastError(run.err.Error())
		}
	}()
	return run, nil
}

// BatchActive reports whether a batch is running.
func (c *Controller) BatchActive() bool {
	return c.running.Load()
}

// Wait blocks until no batch is running or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the presentation snapshot.
func (c *Controller) State() State {
	items := c.store.Snapshot()
	active := c.running.Load()
	st := State{
		Items:              items,
		Params:             c.Params(),
		BatchActive:        active,
		CredentialVerified: c.creds.Verified(),
		LastBatchError:     c.lastError(),
	}
	for _, it := range items {
		if it.Status.Eligible() && !active {
			st.CanGenerate = true
		}
		if it.HasResult() {
			st.CanDownloadAll = true
		}
	}
	return st
}

// Preview returns the displayable source of an item.
func (c *Controller) Preview(id string) ([]byte, string, error) {
	it, ok := c.store.Get(id)
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	if len(it.Source.Preview) > 0 {
		return it.Source.Preview, it.Source.PreviewMIME, nil
	}
	return it.Source.Data, it.Source.MIME, nil
}

// Result returns the download name and image of a completed item.
func (c *Controller) Result(id string) (string, *domain.ResultImage, error) {
	it, ok := c.store.Get(id)
	if !ok || !it.HasResult() {
		return "", nil, domain.ErrNotFound
	}
	return export.FileName(c.prefix, it.ID), it.Result, nil
}

// ExportAll hands every completed result to saver, pausing delay between
// saves. It returns the number of files saved.
func (c *Controller) ExportAll(ctx context.Context, saver export.Saver, delay time.Duration) (int, error) {
	pacer := &export.Pacer{
		Saver:  saver,
		Prefix: c.prefix,
		Delay:  delay,
		Sleep:  c.sleep,
		Logger: c.logger,
	}
	n, err := pacer.ExportAll(ctx, c.store.Completed())
	if err != nil {
		return n, err
	}
	c.logger.Info().Int("files", n).Msg("studio: export finished")
	return n, nil
}

// Watch streams store changes until ctx is done.
func (c *Controller) Watch(ctx context.Context) <-chan session.Event {
	return c.store.Watch(ctx, 64)
}

func (c *Controller) setLastError(msg string) {
	c.errMu.Lock()
	c.lastErr = msg
	c.errMu.Unlock()
}

func (c *Controller) lastError() string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}
