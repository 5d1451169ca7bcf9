package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"voxplaces/encoder"
)

const fakeFrameSize = 1024

// FakeContext replays PCM16 audio from memory instead of a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// Denied hides every device, the way an OS privacy prompt that was
	// refused looks to the enumeration API.
	Denied bool
	// DevicesErr makes Devices fail outright.
	DevicesErr error
	// StartErr is returned by every capture's Start.
	StartErr error
}

// NewFakeContext loads the samples of a WAV file. The stream format is
// assumed to match the capture config.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	pcm, err := encoder.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wavPath, err)
	}
	return NewFakeContextPCM(pcm.Data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.DevicesErr != nil {
		return nil, f.DevicesErr
	}
	if f.Denied {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if config.Channels == 0 {
		return nil, errors.New("fake capture: zero channels")
	}
	return &FakeCapture{
		pcm:        f.pcm,
		realtime:   f.realtime,
		startErr:   f.StartErr,
		sampleRate: config.SampleRate,
		frameBytes: int(config.Channels) * 2,
	}, nil
}

// FakeCapture feeds the whole clip once, then silence until stopped.
type FakeCapture struct {
	pcm        []byte
	realtime   bool
	startErr   error
	sampleRate uint32
	frameBytes int

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/f.frameBytes))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * f.frameBytes
	interval := time.Millisecond
	if f.realtime && f.sampleRate > 0 {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
	}

	// Without realtime pacing the clip is delivered before Start returns so
	// a quick Stop still sees all of it.
	pos := 0
	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
	}

	go func() {
		defer close(f.feedDone)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() { f.Stop() }
