package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookbook/internal/domain"
	"lookbook/internal/providers/image"
	"lookbook/internal/session"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []image.Request
	onCall   func(req image.Request) (*domain.ResultImage, error)
	observed []domain.Status
	store    *session.Store

	inFlight    int
	maxInFlight int
}

func (f *fakeGenerator) Generate(ctx context.Context, req image.Request) (*domain.ResultImage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	if f.store != nil {
		if it, ok := f.store.Get(req.ItemID); ok {
			f.observed = append(f.observed, it.Status)
		}
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	if f.onCall != nil {
		return f.onCall(req)
	}
	return &domain.ResultImage{MIME: "image/png", Data: []byte("png-" + req.ItemID)}, nil
}

type staticCredential struct {
	key   string
	err   error
	calls int
}

func (c *staticCredential) Ensure(context.Context) (string, error) {
	c.calls++
	return c.key, c.err
}

type paramsFunc func() domain.Params

func (f paramsFunc) Params() domain.Params { return f() }

func fixedParams(p domain.Params) ParamsSource {
	return paramsFunc(func() domain.Params { return p })
}

type sleepRecorder struct {
	mu     sync.Mutex
	slept  []time.Duration
	before func(n int)
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	n := len(r.slept)
	r.mu.Unlock()
	if r.before != nil {
		r.before(n)
	}
	return ctx.Err()
}

func newTestStore(t *testing.T, n int) *session.Store {
	t.Helper()
	next := 0
	store := session.NewStore(session.Options{NewID: func() string {
		next++
		return fmt.Sprintf("item-%d", next)
	}})
	sources := make([]domain.SourceImage, n)
	for i := range sources {
		sources[i] = domain.SourceImage{Name: fmt.Sprintf("look-%d.jpg", i+1), MIME: "image/jpeg", Data: []byte{byte(i)}}
	}
	store.AddItems(sources)
	return store
}

func newScheduler(t *testing.T, opts Options) *Scheduler {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestRunProcessesSequentiallyWithCooldown(t *testing.T) {
	store := newTestStore(t, 3)
	gen := &fakeGenerator{store: store}
	sleeper := &sleepRecorder{}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
		Delay:       2 * time.Second,
		ResultURL:   session.DefaultResultURL,
		Sleep:       sleeper.Sleep,
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Completed)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.slept)
	require.Len(t, gen.calls, 3)
	assert.Equal(t, 1, gen.maxInFlight)
	assert.Equal(t, []string{"item-1", "item-2", "item-3"}, []string{gen.calls[0].ItemID, gen.calls[1].ItemID, gen.calls[2].ItemID})
	for _, call := range gen.calls {
		assert.Equal(t, "k", call.Credential)
	}
	for _, it := range store.Snapshot() {
		assert.Equal(t, domain.StatusCompleted, it.Status)
		require.NotNil(t, it.Result)
		assert.Equal(t, "/v1/items/"+it.ID+"/result", it.Result.URL)
	}
	assert.False(t, s.Active())
}

func TestRunKeepsOneCallOutstanding(t *testing.T) {
	store := newTestStore(t, 4)
	gen := &fakeGenerator{onCall: func(req image.Request) (*domain.ResultImage, error) {
		time.Sleep(5 * time.Millisecond)
		return &domain.ResultImage{MIME: "image/png", Data: []byte("png")}, nil
	}}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 1, gen.maxInFlight)
	assert.Zero(t, gen.inFlight)
}

func TestRunMarksProcessingBeforeCall(t *testing.T) {
	store := newTestStore(t, 2)
	gen := &fakeGenerator{store: store}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	_, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{domain.StatusProcessing, domain.StatusProcessing}, gen.observed)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	store := newTestStore(t, 3)
	gen := &fakeGenerator{onCall: func(req image.Request) (*domain.ResultImage, error) {
		switch req.ItemID {
		case "item-1":
			return nil, errors.New("gemini status 429: quota exceeded")
		case "item-2":
			return &domain.ResultImage{}, nil
		}
		return &domain.ResultImage{MIME: "image/png", Data: []byte("ok")}, nil
	}}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 2, report.Failed)

	first, _ := store.Get("item-1")
	assert.Equal(t, domain.StatusError, first.Status)
	assert.Equal(t, "gemini status 429: quota exceeded", first.Error)
	assert.Nil(t, first.Result)

	second, _ := store.Get("item-2")
	assert.Equal(t, domain.StatusError, second.Status)
	assert.Equal(t, "no image generated", second.Error)

	third, _ := store.Get("item-3")
	assert.Equal(t, domain.StatusCompleted, third.Status)
	assert.Empty(t, third.Error)
}

func TestRunRetryOnlyTouchesFailedItem(t *testing.T) {
	store := newTestStore(t, 2)
	fail := true
	gen := &fakeGenerator{onCall: func(req image.Request) (*domain.ResultImage, error) {
		if req.ItemID == "item-2" && fail {
			return nil, errors.New("boom")
		}
		return &domain.ResultImage{MIME: "image/png", Data: []byte("ok")}, nil
	}}
	sleeper := &sleepRecorder{}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
		Delay:       time.Second,
		Sleep:       sleeper.Sleep,
	})

	_, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)

	fail = false
	retry := store.Eligible()
	require.Len(t, retry, 1)
	assert.Equal(t, "item-2", retry[0].ID)

	report, err := s.Run(context.Background(), retry)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Len(t, gen.calls, 3)
	assert.Len(t, sleeper.slept, 1, "a single-item retry must not sleep")

	item, _ := store.Get("item-2")
	assert.Equal(t, domain.StatusCompleted, item.Status)
	assert.Empty(t, item.Error)
}

func TestRunSkipsItemRemovedInFlight(t *testing.T) {
	store := newTestStore(t, 2)
	gen := &fakeGenerator{}
	gen.onCall = func(req image.Request) (*domain.ResultImage, error) {
		if req.ItemID == "item-1" {
			store.RemoveItem("item-1")
		}
		return &domain.ResultImage{MIME: "image/png", Data: []byte("ok")}, nil
	}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("item-1")
	assert.False(t, ok)
}

func TestRunCredentialFailureLeavesItemsUntouched(t *testing.T) {
	store := newTestStore(t, 2)
	gen := &fakeGenerator{}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{err: errors.New("prompt closed")},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	_, err := s.Run(context.Background(), store.Eligible())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialUnavailable)
	assert.Empty(t, gen.calls)
	for _, it := range store.Snapshot() {
		assert.Equal(t, domain.StatusIdle, it.Status)
	}
}

func TestRunEmptySnapshotSkipsCredential(t *testing.T) {
	cred := &staticCredential{key: "k"}
	s := newScheduler(t, Options{
		Generator:   &fakeGenerator{},
		Credentials: cred,
		Params:      fixedParams(domain.DefaultParams()),
		Items:       newTestStore(t, 0),
	})

	report, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Zero(t, cred.calls)
}

func TestRunReadsParamsPerItem(t *testing.T) {
	store := newTestStore(t, 2)
	var mu sync.Mutex
	current := domain.Params{Gender: domain.GenderFemale}
	params := paramsFunc(func() domain.Params {
		mu.Lock()
		defer mu.Unlock()
		return current
	})
	gen := &fakeGenerator{}
	sleeper := &sleepRecorder{before: func(int) {
		mu.Lock()
		current = domain.Params{Gender: domain.GenderBoy, Remarks: "red scarf"}
		mu.Unlock()
	}}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      params,
		Items:       store,
		Delay:       time.Second,
		Sleep:       sleeper.Sleep,
	})

	_, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)
	assert.Equal(t, domain.GenderFemale, gen.calls[0].Params.Gender)
	assert.Equal(t, domain.GenderBoy, gen.calls[1].Params.Gender)
	assert.Equal(t, "red scarf", gen.calls[1].Params.Remarks)
}

func TestRunTimeoutFailsItem(t *testing.T) {
	store := newTestStore(t, 1)
	gen := &fakeGenerator{onCall: func(req image.Request) (*domain.ResultImage, error) {
		<-time.After(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
		Timeout:     10 * time.Millisecond,
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	item, _ := store.Get("item-1")
	assert.Equal(t, domain.StatusError, item.Status)
	assert.Contains(t, item.Error, "timed out")
}

func TestRunCancelStopsAtItemBoundary(t *testing.T) {
	store := newTestStore(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &fakeGenerator{}
	gen.onCall = func(req image.Request) (*domain.ResultImage, error) {
		if req.ItemID == "item-1" {
			cancel()
		}
		return &domain.ResultImage{MIME: "image/png", Data: []byte("ok")}, nil
	}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	report, err := s.Run(ctx, store.Eligible())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Completed)
	assert.Len(t, gen.calls, 1)

	first, _ := store.Get("item-1")
	assert.Equal(t, domain.StatusCompleted, first.Status, "the in-flight call still lands")
	rest, _ := store.Get("item-2")
	assert.Equal(t, domain.StatusIdle, rest.Status)
	assert.False(t, s.Active())
}

func TestRunRecoversProviderPanic(t *testing.T) {
	store := newTestStore(t, 2)
	gen := &fakeGenerator{onCall: func(req image.Request) (*domain.ResultImage, error) {
		if req.ItemID == "item-1" {
			panic("nil map")
		}
		return &domain.ResultImage{MIME: "image/png", Data: []byte("ok")}, nil
	}}
	s := newScheduler(t, Options{
		Generator:   gen,
		Credentials: &staticCredential{key: "k"},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       store,
	})

	report, err := s.Run(context.Background(), store.Eligible())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Completed)
	item, _ := store.Get("item-1")
	assert.Contains(t, item.Error, "provider failure")
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{
		Generator:   &fakeGenerator{},
		Credentials: &staticCredential{},
		Params:      fixedParams(domain.DefaultParams()),
		Items:       newTestStore(t, 0),
		Delay:       -time.Second,
	})
	assert.Error(t, err)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
