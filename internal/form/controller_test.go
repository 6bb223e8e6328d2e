package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeTransformer struct {
	mu       sync.Mutex
	requests []Request
	err      error
	release  map[string]chan struct{}
}

func (f *fakeTransformer) Apply(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	wait := f.release[req.Upload.Name]
	err := f.err
	f.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Function: req.Function, ContentType: "image/png", Data: []byte(req.Upload.Name)}, nil
}

func (f *fakeTransformer) calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

type statusErr int

func (s statusErr) Error() string   { return "backend failed" }
func (s statusErr) HTTPStatus() int { return int(s) }

func pngUpload(t *testing.T, name string, channel upload.Channel) upload.Upload {
	t.Helper()
	u, err := upload.New(channel, name, pngHeader)
	require.NoError(t, err)
	return u
}

func TestSubmitValidatesBeforeSending(t *testing.T) {
	fake := &fakeTransformer{}
	c := NewController(fake)

	_, err := c.Submit(context.Background())
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.True(t, errors.Is(err, ErrNoFunction))

	_, err = c.Select("lego")
	require.NoError(t, err)

	_, err = c.Submit(context.Background())
	assert.True(t, errors.Is(err, ErrNoFile))
	assert.Empty(t, fake.calls())
	assert.Equal(t, StateIdle, c.Output().State)
}

func TestSubmitSendsSnapshot(t *testing.T) {
	fake := &fakeTransformer{}
	c := NewController(fake)

	schema, err := c.Select("braille")
	require.NoError(t, err)
	assert.Len(t, schema.Params, 3)

	require.NoError(t, c.ConfirmOptions([]function.Input{
		{ID: "invert", Kind: function.InputCheckbox, Checked: true},
		{ID: "threshold", Kind: function.InputNumber, Value: "120"},
	}))
	require.NoError(t, c.Attach(pngUpload(t, "cat.png", upload.ChannelPicker)))

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, function.Braille, res.Function)

	calls := fake.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, function.Braille, calls[0].Function)
	assert.Equal(t, "invert=true&threshold=120", calls[0].Options.Encode())
	assert.Equal(t, "cat.png", calls[0].Upload.Name)

	out := c.Output()
	assert.Equal(t, StateImage, out.State)
	require.NotNil(t, out.Result)
	assert.Equal(t, []byte("cat.png"), out.Result.Data)
}

func TestSelectClearsOptions(t *testing.T) {
	fake := &fakeTransformer{}
	c := NewController(fake)

	_, err := c.Select("lego")
	require.NoError(t, err)
	require.NoError(t, c.ConfirmOptions([]function.Input{{ID: "size", Kind: function.InputNumber, Value: "12"}}))
	assert.Len(t, c.Options(), 1)

	_, err = c.Select("frost")
	require.NoError(t, err)
	assert.Empty(t, c.Options())

	require.NoError(t, c.Attach(pngUpload(t, "a.png", upload.ChannelPicker)))
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", fake.calls()[0].Options.Encode())

	schema, err := c.Select(function.Placeholder)
	require.NoError(t, err)
	assert.True(t, schema.Empty())
	_, selected := c.Form()
	assert.False(t, selected)
}

func TestSelectUnknownKeepsSelection(t *testing.T) {
	c := NewController(&fakeTransformer{})

	_, err := c.Select("paint")
	require.NoError(t, err)

	_, err = c.Select("sepia")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.True(t, errors.Is(err, function.ErrUnknownFunction))

	schema, ok := c.Form()
	assert.True(t, ok)
	assert.Equal(t, function.Paint, schema.Function)
}

func TestConfirmOptionsKeepsPreviousOnInvalidInput(t *testing.T) {
	c := NewController(&fakeTransformer{})

	err := c.ConfirmOptions(nil)
	assert.True(t, errors.Is(err, ErrNoFunction))

	_, err = c.Select("paint")
	require.NoError(t, err)
	require.NoError(t, c.ConfirmOptions([]function.Input{{ID: "radius", Kind: function.InputNumber, Value: "3"}}))

	err = c.ConfirmOptions([]function.Input{
		{ID: "radius", Kind: function.InputNumber, Value: "7"},
		{ID: "intensity", Kind: function.InputNumber, Value: "250"},
	})
	var optErr *function.OptionError
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, "intensity", optErr.Key)
	assert.Equal(t, "radius=3", c.Options().Encode())
}

func TestAttachRejectsNonImagesFromPasteAndDrop(t *testing.T) {
	c := NewController(&fakeTransformer{})
	require.NoError(t, c.Attach(pngUpload(t, "first.png", upload.ChannelPicker)))

	text := upload.Upload{Name: "notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("notes"), Channel: upload.ChannelPaste}
	err := c.Attach(text)
	assert.True(t, errors.Is(err, upload.ErrNotImage))

	text.Channel = upload.ChannelDrop
	err = c.Attach(text)
	assert.True(t, errors.Is(err, upload.ErrNotImage))

	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "first.png", pending.Name)

	text.Channel = upload.ChannelPicker
	require.NoError(t, c.Attach(text))
	pending, _ = c.Pending()
	assert.Equal(t, "notes.txt", pending.Name)
}

func TestAttachReplacesPendingUpload(t *testing.T) {
	fake := &fakeTransformer{}
	c := NewController(fake)
	_, err := c.Select("edge")
	require.NoError(t, err)

	require.NoError(t, c.Attach(pngUpload(t, "picked.png", upload.ChannelPicker)))
	require.NoError(t, c.Attach(pngUpload(t, "pasted.png", upload.ChannelPaste)))

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pasted.png", fake.calls()[0].Upload.Name)
}

func TestSubmitFailureShowsStatusAlert(t *testing.T) {
	fake := &fakeTransformer{err: statusErr(413)}
	c := NewController(fake)
	_, err := c.Select("lego")
	require.NoError(t, err)
	require.NoError(t, c.Attach(pngUpload(t, "big.png", upload.ChannelPicker)))

	_, err = c.Submit(context.Background())
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 413, reqErr.Status)
	assert.Equal(t, "413: Something went wrong", Alert(err))
	assert.Equal(t, StatePlaceholder, c.Output().State)

	fake.err = errors.New("connection refused")
	_, err = c.Submit(context.Background())
	assert.Equal(t, "0: Something went wrong", Alert(err))
}

func TestLastCompletingSubmitWins(t *testing.T) {
	fake := &fakeTransformer{release: map[string]chan struct{}{
		"slow.png": make(chan struct{}),
	}}
	c := NewController(fake)
	_, err := c.Select("matrix")
	require.NoError(t, err)
	require.NoError(t, c.Attach(pngUpload(t, "slow.png", upload.ChannelPicker)))

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		slowDone <- err
	}()

	require.Eventually(t, func() bool { return c.InFlight() == 1 }, timeout, tick)
	assert.Equal(t, StateProcessing, c.Output().State)

	require.NoError(t, c.Attach(pngUpload(t, "fast.png", upload.ChannelPicker)))
	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("fast.png"), c.Output().Result.Data)

	close(fake.release["slow.png"])
	require.NoError(t, <-slowDone)

	out := c.Output()
	assert.Equal(t, StateImage, out.State)
	assert.Equal(t, []byte("slow.png"), out.Result.Data)
	assert.Equal(t, 0, c.InFlight())
}
