package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"voxplaces/audio"
	"voxplaces/encoder"
	"voxplaces/log"
	"voxplaces/session"
)

// minRecording is the shortest take worth uploading.
const minRecording = 100 * time.Millisecond

var errNoDevices = errors.New("no capture devices found")

// micRecorder adapts an audio.Context to session.CaptureDevice. It keeps at
// most one take open; starting a new one discards the old.
type micRecorder struct {
	ctx     audio.Context
	device  *audio.DeviceInfo
	gain    int32
	onLevel func(rms float64)

	mu     sync.Mutex
	next   session.Handle
	active *take
}

func newMicRecorder(ctx audio.Context, device *audio.DeviceInfo) *micRecorder {
	return &micRecorder{ctx: ctx, device: device}
}

// RequestPermission reports whether any microphone can be enumerated. On
// desktop systems that is as close to a permission grant as we get: a refused
// privacy prompt hides the devices. A failing enumeration is an error, not a
// denial.
func (r *micRecorder) RequestPermission(ctx context.Context) (bool, error) {
	devices, err := r.ctx.Devices()
	if err != nil {
		return false, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		log.Warnf("permission check: %v", errNoDevices)
		return false, nil
	}
	return true, nil
}

func (r *micRecorder) Start(ctx context.Context, cfg encoder.Config) (session.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		log.Warnf("discarding open capture %d", r.active.handle)
		r.active.finish()
		r.active = nil
	}

	enc, err := encoder.New(cfg)
	if err != nil {
		return 0, err
	}
	capture, err := r.ctx.NewCapture(r.device, audio.CaptureConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Gain:       r.gain,
	})
	if err != nil {
		return 0, fmt.Errorf("capture init: %w", err)
	}

	r.next++
	t := newTake(r.next, capture, enc, cfg, r.onLevel)
	capture.SetCallback(t.feed)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		t.closeBlocks()
		return 0, err
	}
	log.Info("recording_device: " + capture.DeviceName())
	r.active = t
	return t.handle, nil
}

// Stop ends the take and returns its clip. A stale or already stopped handle
// returns a nil clip. Takes shorter than minRecording come back empty.
func (r *micRecorder) Stop(ctx context.Context, h session.Handle) (*encoder.Clip, error) {
	r.mu.Lock()
	t := r.active
	if t == nil || t.handle != h {
		r.mu.Unlock()
		return nil, nil
	}
	r.active = nil
	r.mu.Unlock()

	if err := t.finish(); err != nil {
		return nil, err
	}
	clip := t.clip()
	if clip.Duration < minRecording {
		log.Info(fmt.Sprintf("recording_too_short: %s", clip.Duration))
		return &encoder.Clip{Format: clip.Format}, nil
	}
	return clip, nil
}

// open reports the handle of the live take, if any.
func (r *micRecorder) open() (session.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0, false
	}
	return r.active.handle, true
}

// take is one capture feeding an encoder through a block channel.
type take struct {
	handle  session.Handle
	capture audio.CaptureDevice
	enc     encoder.Encoder
	cfg     encoder.Config
	onLevel func(float64)

	blockChan  chan []int16
	encodeDone chan struct{}

	bufMu     sync.Mutex
	sampleBuf []int16
	stopped   bool
	closeOnce sync.Once
	err       error
}

func newTake(h session.Handle, capture audio.CaptureDevice, enc encoder.Encoder, cfg encoder.Config, onLevel func(float64)) *take {
	t := &take{
		handle:     h,
		capture:    capture,
		enc:        enc,
		cfg:        cfg,
		onLevel:    onLevel,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}
	go func() {
		defer close(t.encodeDone)
		for block := range t.blockChan {
			if err := t.enc.EncodeBlock(block); err != nil && t.err == nil {
				t.err = err
			}
		}
	}()
	return t
}

func (t *take) feed(data []byte, _ uint32) {
	t.bufMu.Lock()
	defer t.bufMu.Unlock()
	if t.stopped {
		return
	}

	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		t.sampleBuf = append(t.sampleBuf, s)
		n := float64(s) / 32768.0
		sumSquares += n * n
	}
	if t.onLevel != nil && len(data) > 1 {
		t.onLevel(math.Sqrt(sumSquares / float64(len(data)/2)))
	}

	size := encoder.BlockSize * int(t.cfg.Channels)
	for len(t.sampleBuf) >= size {
		block := make([]int16, size)
		copy(block, t.sampleBuf[:size])
		t.sampleBuf = t.sampleBuf[size:]
		t.blockChan <- block
	}
}

// finish stops the device, flushes the tail and closes the encoder. It is safe
// to call more than once.
func (t *take) finish() error {
	t.closeOnce.Do(func() {
		t.capture.Stop()
		t.capture.ClearCallback()
		t.capture.Close()

		t.bufMu.Lock()
		t.stopped = true
		if len(t.sampleBuf) > 0 {
			partial := make([]int16, len(t.sampleBuf))
			copy(partial, t.sampleBuf)
			t.sampleBuf = nil
			t.blockChan <- partial
		}
		t.bufMu.Unlock()

		close(t.blockChan)
		<-t.encodeDone
		if t.err == nil {
			t.err = t.enc.Close()
		}
	})
	return t.err
}

// closeBlocks shuts the encoder goroutine down for a take that never started.
func (t *take) closeBlocks() {
	t.closeOnce.Do(func() {
		t.bufMu.Lock()
		t.stopped = true
		t.bufMu.Unlock()
		close(t.blockChan)
		<-t.encodeDone
	})
}

func (t *take) clip() *encoder.Clip {
	rate := t.cfg.SampleRate
	if rate == 0 {
		rate = encoder.SampleRate
	}
	frames := t.enc.TotalFrames()
	return &encoder.Clip{
		Data:     t.enc.Bytes(),
		Format:   t.cfg.Format,
		Duration: time.Duration(float64(frames) / float64(rate) * float64(time.Second)),
	}
}
