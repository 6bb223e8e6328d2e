package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/dunamismax/stylize/internal/function"
	"github.com/dunamismax/stylize/internal/upload"
)

type State string

const (
	StateIdle        State = "idle"
	StateProcessing  State = "processing"
	StateImage       State = "image"
	StatePlaceholder State = "placeholder"
)

// Request is the snapshot of a form at submit time.
type Request struct {
	Function function.Function
	Options  function.Options
	Upload   upload.Upload
}

type Result struct {
	Function    function.Function
	ContentType string
	Data        []byte
}

type Output struct {
	State  State
	Result *Result
}

type Transformer interface {
	Apply(ctx context.Context, req Request) (Result, error)
}

// Snapshot is a read-only copy of the controller state for rendering.
type Snapshot struct {
	Function function.Function
	Schema   function.Schema
	Options  function.Options
	Pending  *upload.Upload
	Output   Output
}

// Controller holds one form: the selected function, its confirmed options,
// the pending upload and the output area. Overlapping submits are not
// serialized; the last one to finish owns the output.
type Controller struct {
	transformer Transformer

	mu       sync.Mutex
	fn       function.Function
	options  function.Options
	pending  *upload.Upload
	output   Output
	inFlight int
}

func NewController(transformer Transformer) *Controller {
	return &Controller{
		transformer: transformer,
		options:     function.Options{},
		output:      Output{State: StateIdle},
	}
}

// Select switches the function and drops the options of the previous one.
// The placeholder clears the selection.
func (c *Controller) Select(name string) (function.Schema, error) {
	fn, ok, err := function.Parse(name)
	if err != nil {
		return function.Schema{}, &ValidationError{Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.options = function.Options{}
	if !ok {
		c.fn = ""
		return function.Schema{}, nil
	}
	c.fn = fn
	return function.SchemaFor(fn), nil
}

func (c *Controller) Form() (function.Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fn == "" {
		return function.Schema{}, false
	}
	return function.SchemaFor(c.fn), true
}

// ConfirmOptions replaces the options with the coerced inputs. Invalid input
// leaves the current options untouched.
func (c *Controller) ConfirmOptions(inputs []function.Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fn == "" {
		return &ValidationError{Err: ErrNoFunction}
	}

	opts, err := function.Build(function.SchemaFor(c.fn), inputs)
	if err != nil {
		return &ValidationError{Err: err}
	}
	c.options = opts
	return nil
}

func (c *Controller) Options() function.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options.Clone()
}

func (c *Controller) Attach(u upload.Upload) error {
	if len(u.Data) == 0 {
		return &ValidationError{Err: upload.ErrEmpty}
	}
	if (u.Channel == upload.ChannelPaste || u.Channel == upload.ChannelDrop) && !u.IsImage() {
		return &ValidationError{Err: fmt.Errorf("%w: %s", upload.ErrNotImage, u.ContentType)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &u
	return nil
}

func (c *Controller) Pending() (upload.Upload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return upload.Upload{}, false
	}
	return *c.pending, true
}

// Submit sends the current function, options and upload to the transformer.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	req, err := c.begin()
	if err != nil {
		return Result{}, err
	}

	res, err := c.transformer.Apply(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if err != nil {
		c.output = Output{State: StatePlaceholder}
		return Result{}, &RequestError{Status: statusOf(err), Err: err}
	}

	c.output = Output{State: StateImage, Result: &res}
	return res, nil
}

func (c *Controller) begin() (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fn == "" {
		return Request{}, &ValidationError{Err: ErrNoFunction}
	}
	if c.pending == nil {
		return Request{}, &ValidationError{Err: ErrNoFile}
	}

	c.inFlight++
	c.output = Output{State: StateProcessing}
	return Request{
		Function: c.fn,
		Options:  c.options.Clone(),
		Upload:   *c.pending,
	}, nil
}

func (c *Controller) Output() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output
}

// InFlight reports how many submits are waiting on the transformer.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Function: c.fn,
		Options:  c.options.Clone(),
		Output:   c.output,
	}
	if c.fn != "" {
		snap.Schema = function.SchemaFor(c.fn)
	}
	if c.pending != nil {
		p := *c.pending
		snap.Pending = &p
	}
	return snap
}
