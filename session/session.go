// Package session implements the record → upload → results state machine.
//
// A Controller owns the microphone handle while recording and the single
// in-flight upload afterwards. Every operation re-checks the phase itself, so
// duplicate triggers from any UI are harmless.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voxplaces/encoder"
	"voxplaces/log"
	"voxplaces/place"
)

const DefaultUploadTimeout = 30 * time.Second

// Handle identifies an open capture.
type Handle uint64

type CaptureDevice interface {
	RequestPermission(ctx context.Context) (bool, error)
	Start(ctx context.Context, cfg encoder.Config) (Handle, error)
	// Stop must tolerate a handle that is already stopped.
	Stop(ctx context.Context, h Handle) (*encoder.Clip, error)
}

type Transport interface {
	Submit(ctx context.Context, clip *encoder.Clip) ([]place.Place, error)
}

type Options struct {
	Encoding      encoder.Config
	UploadTimeout time.Duration
	// OnChange is called after every transition, in transition order. It
	// must not call back into the Controller synchronously.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Phase     Phase
	Results   []place.Place
	LastError *Failure
	Notice    string
}

type Controller struct {
	capture   CaptureDevice
	transport Transport
	opts      Options

	base   context.Context
	cancel context.CancelFunc

	// opMu serializes start, stop and submit; uploads never take it.
	opMu sync.Mutex
	// pubMu keeps OnChange calls in transition order.
	pubMu   sync.Mutex
	uploads sync.WaitGroup

	mu        sync.Mutex
	phase     Phase
	handle    Handle
	hasHandle bool
	results   []place.Place
	lastErr   *Failure
	notice    string
}

func New(capture CaptureDevice, transport Transport, opts Options) *Controller {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.Encoding.Format == "" {
		opts.Encoding = encoder.DefaultConfig()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		capture:   capture,
		transport: transport,
		opts:      opts,
		base:      base,
		cancel:    cancel,
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{Phase: c.phase, LastError: c.lastErr, Notice: c.notice}
	if c.results != nil {
		s.Results = make([]place.Place, len(c.results))
		copy(s.Results, c.results)
	}
	return s
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Toggle is the record button: it starts a capture from Idle, ResultsReady
// or Failed, stops the capture while Recording, and is a no-op returning
// ErrBusy while Uploading.
func (c *Controller) Toggle(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	switch c.Phase() {
	case Uploading:
		log.Info("toggle_ignored: uploading")
		return ErrBusy
	case Recording:
		return c.stopLocked(ctx)
	default:
		return c.startLocked(ctx)
	}
}

// Start begins a fresh capture. A capture already in progress is stopped and
// its audio discarded first.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Phase() == Uploading {
		log.Info("start_ignored: uploading")
		return ErrBusy
	}
	return c.startLocked(ctx)
}

// Stop ends the capture and submits it. It does nothing unless Recording.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Phase() != Recording {
		return nil
	}
	return c.stopLocked(ctx)
}

// Submit uploads an already recorded clip. It returns once the session is
// Uploading; the outcome arrives through OnChange (or Wait).
func (c *Controller) Submit(ctx context.Context, clip *encoder.Clip) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if clip.Empty() {
		return ErrEmptyClip
	}

	accepted := c.update(func() bool {
		if c.phase == Recording || c.phase == Uploading {
			return false
		}
		c.phase = Uploading
		c.results = nil
		c.lastErr = nil
		c.notice = ""
		return true
	})
	if !accepted {
		return ErrBusy
	}
	c.beginUpload(clip)
	return nil
}

// Reset returns to Idle from ResultsReady or Failed. While a capture or an
// upload is in flight it returns ErrBusy and changes nothing.
func (c *Controller) Reset() error {
	var busy Phase
	c.update(func() bool {
		switch c.phase {
		case Recording, Uploading:
			busy = c.phase
			return false
		case Idle:
			return false
		}
		c.phase = Idle
		c.results = nil
		c.lastErr = nil
		c.notice = ""
		return true
	})
	if busy != Idle {
		log.Info("reset_ignored: " + busy.String())
		return ErrBusy
	}
	return nil
}

// Wait blocks until no upload is in flight.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.uploads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases a live capture and abandons any in-flight upload. It is
// meant for process shutdown.
func (c *Controller) Close(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	recording := c.phase == Recording
	c.mu.Unlock()
	if recording {
		c.releaseLocked(ctx)
		c.transition(Idle, func() {})
	}
	c.cancel()
}

// startLocked requires opMu.
func (c *Controller) startLocked(ctx context.Context) error {
	if c.Phase() == Recording {
		log.Info("restart_recording")
		c.releaseLocked(ctx)
	}

	granted, err := c.capture.RequestPermission(ctx)
	if err != nil {
		return c.fail(CaptureFailure, fmt.Errorf("request permission: %w", err))
	}
	if !granted {
		f := &Failure{Kind: PermissionDenied, Err: ErrPermissionDenied}
		log.Failure(f.Kind.String(), f.Err)
		c.transition(Idle, func() {
			c.results = nil
			c.lastErr = nil
			c.notice = "Microphone permission denied"
		})
		return f
	}

	h, err := c.capture.Start(ctx, c.opts.Encoding)
	if err != nil {
		return c.fail(CaptureFailure, fmt.Errorf("start capture: %w", err))
	}

	c.transition(Recording, func() {
		c.handle = h
		c.hasHandle = true
		c.results = nil
		c.lastErr = nil
		c.notice = ""
	})
	return nil
}

// stopLocked requires opMu and phase Recording.
func (c *Controller) stopLocked(ctx context.Context) error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()

	clip, err := c.capture.Stop(ctx, h)
	c.transition(Uploading, func() {
		c.handle = 0
		c.hasHandle = false
	})

	if err == nil && clip.Empty() {
		err = ErrEmptyClip
	}
	if err != nil {
		return c.fail(CaptureFailure, fmt.Errorf("stop capture: %w", err))
	}
	c.beginUpload(clip)
	return nil
}

// releaseLocked stops the live capture and drops its audio.
func (c *Controller) releaseLocked(ctx context.Context) {
	c.mu.Lock()
	h, ok := c.handle, c.hasHandle
	c.handle = 0
	c.hasHandle = false
	c.mu.Unlock()
	if !ok {
		return
	}
	if _, err := c.capture.Stop(ctx, h); err != nil {
		log.Warnf("discarding capture %d: %v", h, err)
	}
}

func (c *Controller) beginUpload(clip *encoder.Clip) {
	c.uploads.Add(1)
	go func() {
		defer c.uploads.Done()
		c.upload(clip)
	}()
}

type submitResult struct {
	places []place.Place
	err    error
}

func (c *Controller) upload(clip *encoder.Clip) {
	ctx, cancel := context.WithTimeout(c.base, c.opts.UploadTimeout)
	defer cancel()

	size, format, dur := len(clip.Data), clip.Format, clip.Duration
	start := time.Now()

	done := make(chan submitResult, 1)
	go func(clip *encoder.Clip) {
		places, err := c.transport.Submit(ctx, clip)
		done <- submitResult{places, err}
	}(clip)

	var res submitResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		res.err = fmt.Errorf("upload timed out after %s: %w", c.opts.UploadTimeout, res.err)
	}

	log.Upload(log.UploadData{
		Format:    string(format),
		SizeKB:    float64(size) / 1024,
		AudioS:    dur.Seconds(),
		ElapsedMs: float64(time.Since(start).Milliseconds()),
		Places:    len(res.places),
		OK:        res.err == nil,
	})

	if res.err != nil {
		kind := TransportFailure
		if errors.Is(res.err, place.ErrNotList) {
			kind = ContractViolation
		}
		c.fail(kind, res.err)
		return
	}

	places := res.places
	if places == nil {
		places = []place.Place{}
	}
	c.transition(ResultsReady, func() {
		c.results = places
		c.lastErr = nil
	})
}

func (c *Controller) fail(kind Kind, err error) *Failure {
	f := &Failure{Kind: kind, Err: err}
	log.Failure(kind.String(), err)
	c.transition(Failed, func() {
		c.results = nil
		c.lastErr = f
		c.notice = ""
	})
	return f
}

func (c *Controller) transition(to Phase, mutate func()) {
	c.update(func() bool {
		mutate()
		c.phase = to
		return true
	})
}

// update runs fn under the state lock and publishes the new state when fn
// reports a change.
func (c *Controller) update(fn func() bool) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	from := c.phase
	changed := fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		log.Phase(from.String(), snap.Phase.String())
		if c.opts.OnChange != nil {
			c.opts.OnChange(snap)
		}
	}
	return changed
}
