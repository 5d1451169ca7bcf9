package doctor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"voxplaces/audio"
	"voxplaces/clipboard"
	"voxplaces/encoder"
	"voxplaces/hotkey"
	"voxplaces/place"
	"voxplaces/session"
	"voxplaces/transport"
)

const total = 4

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(endpoint string, timeout time.Duration) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voxplaces doctor - system diagnostics")
	fmt.Println("=====================================")

	allPass := true
	if !checkHotkey() {
		allPass = false
	}
	clip, ok := checkMicrophone()
	if !ok {
		allPass = false
		clip = silentClip(time.Second)
	}
	if !checkEndpoint(endpoint, timeout, clip) {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func header(n int, name string) {
	fmt.Println()
	fmt.Printf("[%d/%d] %s\n", n, total, name)
}

func checkHotkey() bool {
	header(1, "Global hotkey")
	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)

	fmt.Printf("Press %s (5s)...\n", hotkey.Label)
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		fmt.Println("  PASS: hotkey detected")
	case <-time.After(5 * time.Second):
		fmt.Println("  SKIP: no key press (the in-app keys still work)")
	}
	return true
}

func checkMicrophone() (*encoder.Clip, bool) {
	header(2, "Microphone")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil, false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil, false
	}
	for _, d := range devices {
		warn := ""
		if audio.IsBluetooth(d.Name) {
			warn = " (bluetooth, lower quality)"
		}
		fmt.Printf("  found: %s%s\n", d.Name, warn)
	}

	fmt.Println("Say a place search out loud, e.g. \"coffee near me\" (3s)...")
	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()
	pcm, err := recordAudio(ctx, nil, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return nil, false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}

	level := rms(pcm)
	fmt.Printf("  Recorded %.1f KB, level %.3f\n", float64(len(pcm))/1024, level)
	if level < 0.002 {
		fmt.Println("  FAIL: input is silent (muted or wrong device?)")
		return nil, false
	}
	clip, err := wavClip(pcm)
	if err != nil {
		fmt.Printf("  FAIL: encoding clip: %v\n", err)
		return nil, false
	}
	fmt.Println("  PASS: microphone delivers audio")
	return clip, true
}

func checkEndpoint(endpoint string, timeout time.Duration, clip *encoder.Clip) bool {
	header(3, "Place search endpoint")
	fmt.Printf("  POST %s\n", endpoint)

	tr, err := transport.NewHTTP(endpoint)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	msg, err := probe(tr, clip, timeout)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

// probe submits clip once and describes the outcome the way the session
// would classify it.
func probe(tr session.Transport, clip *encoder.Clip, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	places, err := tr.Submit(ctx, clip)
	elapsed := time.Since(start).Round(time.Millisecond)

	var se *transport.StatusError
	switch {
	case err == nil:
		return fmt.Sprintf("%d place(s) in %s", len(places), elapsed), nil
	case errors.Is(err, place.ErrNotList):
		return "", fmt.Errorf("endpoint answered but not with a list of places: %w", err)
	case errors.As(err, &se):
		return "", fmt.Errorf("endpoint rejected the upload: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("no answer within %s", timeout)
	default:
		return "", fmt.Errorf("cannot reach endpoint: %w", err)
	}
}

func checkClipboard() bool {
	header(4, "Clipboard (copy link)")

	testStr := fmt.Sprintf("voxplaces-doctor-%d", time.Now().UnixNano())
	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	captureDevice, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if stopped {
			return
		}
		pcmBuf = append(pcmBuf, data...)
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, nil
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func wavClip(pcm []byte) (*encoder.Clip, error) {
	data, err := encoder.EncodeWAV(pcm, encoder.SampleRate, encoder.Channels)
	if err != nil {
		return nil, err
	}
	frames := len(pcm) / 2
	return &encoder.Clip{
		Data:     data,
		Format:   encoder.FormatWAV,
		Duration: time.Duration(frames) * time.Second / encoder.SampleRate,
	}, nil
}

func silentClip(d time.Duration) *encoder.Clip {
	clip, err := wavClip(make([]byte, int(d.Seconds()*encoder.SampleRate)*2))
	if err != nil {
		return &encoder.Clip{Format: encoder.FormatWAV}
	}
	return clip
}
