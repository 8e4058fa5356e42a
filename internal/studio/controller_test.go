package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookbook/internal/domain"
	"lookbook/internal/export"
	"lookbook/internal/infra/credentials"
	"lookbook/internal/media"
	"lookbook/internal/providers/image"
	"lookbook/internal/session"
)

type gatedGenerator struct {
	mu      sync.Mutex
	release chan struct{}
	started chan string
	params  []domain.Params
	fail    map[string]error
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{release: make(chan struct{}), started: make(chan string, 16), fail: map[string]error{}}
}

func (g *gatedGenerator) Generate(ctx context.Context, req image.Request) (*domain.ResultImage, error) {
	g.mu.Lock()
	g.params = append(g.params, req.Params)
	err := g.fail[req.ItemID]
	g.mu.Unlock()
	g.started <- req.ItemID
	<-g.release
	if err != nil {
		return nil, err
	}
	return &domain.ResultImage{MIME: "image/png", Data: []byte("result-" + req.ItemID)}, nil
}

type instantGenerator struct{}

func (instantGenerator) Generate(_ context.Context, req image.Request) (*domain.ResultImage, error) {
	return &domain.ResultImage{MIME: "image/png", Data: []byte("result-" + req.ItemID)}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newController(t *testing.T, gen image.Generator, creds *credentials.Store) *Controller {
	t.Helper()
	next := 0
	store := session.NewStore(session.Options{NewID: func() string {
		next++
		return fmt.Sprintf("id%d", next)
	}})
	if creds == nil {
		creds = credentials.NewStore(nil)
		require.NoError(t, creds.Select("test-key"))
	}
	c, err := New(Options{
		Store:        store,
		Generator:    gen,
		Credentials:  creds,
		RequestDelay: time.Second,
		Sleep:        func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
	require.NoError(t, err)
	return c
}

func addImages(t *testing.T, c *Controller, names ...string) []domain.Item {
	t.Helper()
	files := make([]media.File, len(names))
	for i, name := range names {
		files[i] = media.File{Name: name, Data: pngBytes(t)}
	}
	added, rejected := c.AddFiles(files)
	require.Empty(t, rejected)
	return added
}

func TestAddFilesFiltersNonImages(t *testing.T) {
	c := newController(t, instantGenerator{}, nil)

	added, rejected := c.AddFiles([]media.File{
		{Name: "shirt.png", Data: pngBytes(t)},
		{Name: "notes.txt", Data: []byte("plain text, not an image")},
		{Name: "dress.png", Data: pngBytes(t)},
	})
	require.Len(t, added, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "notes.txt", rejected[0].Name)
	assert.ErrorIs(t, rejected[0].Err, domain.ErrUnsupportedMedia)

	st := c.State()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "shirt.png", st.Items[0].Source.Name)
	assert.Equal(t, domain.StatusIdle, st.Items[0].Status)
	assert.True(t, st.CanGenerate)
	assert.False(t, st.CanDownloadAll)

	newer := addImages(t, c, "coat.png")
	assert.Equal(t, newer[0].ID, c.State().Items[0].ID, "new uploads go in front")
}

func TestStartBatchNothingToGenerate(t *testing.T) {
	c := newController(t, instantGenerator{}, nil)
	_, err := c.StartBatch(context.Background())
	assert.ErrorIs(t, err, domain.ErrNothingToGenerate)
	assert.False(t, c.BatchActive())
}

func TestStartBatchRejectsSecondBatch(t *testing.T) {
	gen := newGatedGenerator()
	c := newController(t, gen, nil)
	addImages(t, c, "a.png", "b.png")

	run, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.Items())
	<-gen.started

	_, err = c.StartBatch(context.Background())
	assert.ErrorIs(t, err, domain.ErrBatchActive)

	st := c.State()
	assert.True(t, st.BatchActive)
	assert.False(t, st.CanGenerate)

	close(gen.release)
	require.NoError(t, run.Wait(context.Background()))
	assert.Equal(t, 2, run.Report().Completed)

	st = c.State()
	assert.False(t, st.BatchActive)
	assert.False(t, st.CanGenerate)
	assert.True(t, st.CanDownloadAll)
}

func TestSettingsChangeAppliesToLaterItems(t *testing.T) {
	gen := newGatedGenerator()
	c := newController(t, gen, nil)
	addImages(t, c, "a.png", "b.png")

	run, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	<-gen.started
	_, err = c.SetParams(domain.Params{Gender: "男童", Remarks: "  red   scarf "})
	require.NoError(t, err)
	gen.release <- struct{}{}
	<-gen.started
	close(gen.release)
	require.NoError(t, run.Wait(context.Background()))

	require.Len(t, gen.params, 2)
	assert.Equal(t, domain.GenderFemale, gen.params[0].Gender)
	assert.Equal(t, domain.GenderBoy, gen.params[1].Gender)
	assert.Equal(t, "red scarf", gen.params[1].Remarks)
}

func TestSetParamsRejectsUnknownGender(t *testing.T) {
	c := newController(t, instantGenerator{}, nil)
	_, err := c.SetParams(domain.Params{Gender: "robot"})
	assert.Error(t, err)
	assert.Equal(t, domain.DefaultParams(), c.Params())
}

func TestCredentialFailureRecordsLastBatchError(t *testing.T) {
	c := newController(t, instantGenerator{}, credentials.NewStore(nil))
	addImages(t, c, "a.png")

	run, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	err = run.Wait(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialUnavailable)

	st := c.State()
	assert.NotEmpty(t, st.LastBatchError)
	assert.Equal(t, domain.StatusIdle, st.Items[0].Status)
	assert.False(t, st.CredentialVerified)

	require.NoError(t, c.ChangeCredential("fresh-key"))
	run, err = c.StartBatch(context.Background())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	st = c.State()
	assert.Empty(t, st.LastBatchError)
	assert.Equal(t, domain.StatusCompleted, st.Items[0].Status)
	assert.True(t, st.CredentialVerified)
}

func TestRetryTouchesOnlyFailedItems(t *testing.T) {
	gen := newGatedGenerator()
	close(gen.release)
	c := newController(t, gen, nil)
	items := addImages(t, c, "a.png", "b.png")
	gen.fail[items[1].ID] = errors.New("quota exceeded")

	run, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))
	assert.Equal(t, 1, run.Report().Failed)

	failed, _ := c.store.Get(items[1].ID)
	assert.Equal(t, "quota exceeded", failed.Error)

	delete(gen.fail, items[1].ID)
	run, err = c.StartBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Items())
	require.NoError(t, run.Wait(context.Background()))

	for _, it := range c.State().Items {
		assert.Equal(t, domain.StatusCompleted, it.Status)
	}
}

func TestResultAndExport(t *testing.T) {
	c := newController(t, instantGenerator{}, nil)
	items := addImages(t, c, "a.png", "b.png")

	_, _, err := c.Result(items[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	run, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	require.NoError(t, run.Wait(context.Background()))

	name, res, err := c.Result(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "yingying_gen_"+items[0].ID+".png", name)
	assert.Equal(t, "/v1/items/"+items[0].ID+"/result", res.URL)

	var saved []string
	n, err := c.ExportAll(context.Background(), export.SaverFunc(func(_ context.Context, filename string, _ []byte) error {
		saved = append(saved, filename)
		return nil
	}), export.DefaultDelay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"yingying_gen_id1.png", "yingying_gen_id2.png"}, saved)
}

func TestPreviewAndRemove(t *testing.T) {
	c := newController(t, instantGenerator{}, nil)
	items := addImages(t, c, "a.png")

	data, mime, err := c.Preview(items[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "image/jpeg", mime)

	assert.True(t, c.Remove(items[0].ID))
	assert.False(t, c.Remove(items[0].ID))
	_, _, err = c.Preview(items[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWaitReturnsAfterBatch(t *testing.T) {
	gen := newGatedGenerator()
	c := newController(t, gen, nil)
	addImages(t, c, "a.png")

	_, err := c.StartBatch(context.Background())
	require.NoError(t, err)
	<-gen.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)

	close(gen.release)
	assert.NoError(t, c.Wait(context.Background()))
}
