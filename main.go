package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxplaces/audio"
	"voxplaces/beep"
	"voxplaces/doctor"
	"voxplaces/encoder"
	"voxplaces/hotkey"
	"voxplaces/log"
	"voxplaces/place"
	"voxplaces/session"
	"voxplaces/shutdown"
	"voxplaces/transport"
)

var version = "dev"

// searches counts uploads that came back with results, for session_end.
var searches atomic.Int64

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *session.Controller) {
	shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ctrl.Close(ctx)
		cancel()
		log.SessionEnd(int(searches.Load()))
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

// initCrashLog points runtime crash output at the default log directory. run
// re-points it once -logpath is known.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	log.SetDir(dir)
	openCrashLog()
}

func openCrashLog() {
	if err := log.EnsureDir(); err != nil {
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func defaultEndpoint() string {
	if v := os.Getenv("VOX_ENDPOINT"); v != "" {
		return v
	}
	return transport.DefaultEndpoint
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// cueFor picks the sound for a transition into next.
func cueFor(prev session.Phase, next session.Snapshot) beep.Cue {
	switch next.Phase {
	case session.Recording:
		if prev != session.Recording {
			return beep.Start
		}
	case session.Uploading:
		if prev == session.Recording {
			return beep.End
		}
	case session.ResultsReady:
		return beep.Results
	case session.Failed:
		return beep.Error
	case session.Idle:
		if next.Notice != "" {
			return beep.Error
		}
	}
	return beep.None
}

// newObserver returns the session callback. The session serializes calls, so
// prev needs no lock. onRecord runs for every new take, restarts included.
func newObserver(send func(tea.Msg), onRecord func()) func(session.Snapshot) {
	prev := session.Idle
	return func(s session.Snapshot) {
		cue := cueFor(prev, s)
		if s.Phase == session.Recording && onRecord != nil {
			onRecord()
		}
		prev = s.Phase
		if s.Phase == session.ResultsReady {
			searches.Add(1)
		}
		if cue != beep.None {
			go beep.Play(cue)
		}
		send(SessionMsg{Snap: s})
	}
}

func run() {
	endpointFlag := flag.String("endpoint", defaultEndpoint(), "Place-search webhook URL (env VOX_ENDPOINT)")
	formatFlag := flag.String("format", "wav", "Recording format: wav or flac")
	rateFlag := flag.Uint("rate", encoder.SampleRate, "Recording sample rate in Hz: 16000 or 44100")
	timeoutFlag := flag.Duration("timeout", session.DefaultUploadTimeout, "Upload timeout")
	gainFlag := flag.Int("gain", 1, "Input gain multiplier for quiet microphones")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	fileFlag := flag.String("file", "", "Search with a recorded audio file (.wav, .flac, .m4a) and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	hotkeyFlag := flag.Bool("hotkey", true, "Register the global "+hotkey.Label+" record shortcut")
	beepFlag := flag.Bool("beep", true, "Play sound cues")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Hold the hotkey this long to record until release (0 disables)")
	autoCloseFlag := flag.Bool("autoclose", true, "Stop a recording after 30s without speech")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *logPathFlag != "" {
		logPath, err := log.ResolveDir(*logPathFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
			os.Exit(1)
		}
		log.SetDir(logPath)
		openCrashLog()
	}
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("voxplaces %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*endpointFlag, *timeoutFlag))
	}

	if !*beepFlag {
		beep.Disable()
	}

	cfg, err := encodingConfig(*formatFlag, uint32(*rateFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tr, err := transport.NewHTTP(*endpointFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	} else {
		log.SessionStart(tr.Endpoint(), string(cfg.Format))
	}
	defer log.Close()

	if *fileFlag != "" {
		code := runFile(os.Stdout, tr, *fileFlag, *timeoutFlag)
		log.SessionEnd(int(searches.Load()))
		log.Close()
		os.Exit(code)
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voxplaces -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], tr, cfg, *timeoutFlag)
		return
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		selectedDevice, err = findDevice(ctx, *deviceFlag)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Printf("Warning: %v, using default device\n", err)
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	meter := &levelMeter{}
	rec := newMicRecorder(ctx, selectedDevice)
	rec.gain = int32(*gainFlag)
	rec.onLevel = func(level float64) {
		meter.Observe(level)
		tuiSend(AudioLevelMsg{Level: level})
	}

	var ctrl *session.Controller
	var takes takeCounter
	watch := func() { go watchSilence(ctrl, meter, *autoCloseFlag, takes.next(), silenceNotify) }
	ctrl = session.New(rec, tr, session.Options{
		Encoding:      cfg,
		UploadTimeout: *timeoutFlag,
		OnChange:      newObserver(tuiSend, watch),
	})

	var presses <-chan struct{}
	if *hotkeyFlag {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey register error: %v", err)
			fmt.Printf("Warning: global hotkey unavailable: %v\n", err)
		} else {
			defer hk.Unregister()
			tg := hotkey.NewToggler(hk, *longPressFlag)
			defer tg.Stop()
			presses = tg.Presses()
		}
	}

	go beep.Init()
	go tr.Warm()

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(ctrl, presses != nil)
	tuiMu.Unlock()

	tuiDone := make(chan struct{})
	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		close(tuiDone)
	}()
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	for {
		select {
		case <-presses:
			log.Info("hotkey_press")
			// Toggle blocks on the device; keep the loop free for signals.
			go func() {
				if err := ctrl.Toggle(context.Background()); err != nil && session.KindOf(err) == 0 && !errors.Is(err, session.ErrBusy) {
					log.Warnf("hotkey toggle: %v", err)
				}
			}()
		case <-sigChan:
			gracefulShutdown(ctrl)
		case <-tuiDone:
			gracefulShutdown(ctrl)
		}
	}
}

func encodingConfig(format string, rate uint32) (encoder.Config, error) {
	f, err := encoder.ParseFormat(format)
	if err != nil {
		return encoder.Config{}, err
	}
	if f == encoder.FormatM4A {
		return encoder.Config{}, fmt.Errorf("m4a can only be sent with -file")
	}
	switch rate {
	case 16000, 44100:
	default:
		return encoder.Config{}, fmt.Errorf("unsupported sample rate %d (use 16000 or 44100)", rate)
	}
	return encoder.Config{Format: f, SampleRate: rate, Channels: encoder.Channels}, nil
}

// runFile submits a pre-recorded file and prints the outcome.
func runFile(w io.Writer, tr session.Transport, path string, timeout time.Duration) int {
	format, err := encoder.ParseFormat(filepath.Ext(path))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}

	ctrl := session.New(noCapture{}, tr, session.Options{
		UploadTimeout: timeout,
		OnChange: func(s session.Snapshot) {
			if s.Phase == session.ResultsReady {
				searches.Add(1)
			}
		},
	})
	ctx := context.Background()
	if err := ctrl.Submit(ctx, &encoder.Clip{Data: data, Format: format}); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	if err := ctrl.Wait(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	return printOutcome(w, ctrl.Snapshot())
}

// printOutcome writes results or the failure and returns an exit code.
func printOutcome(w io.Writer, s session.Snapshot) int {
	switch s.Phase {
	case session.ResultsReady:
		if len(s.Results) == 0 {
			fmt.Fprintln(w, "No places found.")
			return 0
		}
		fmt.Fprintf(w, "Places Found (%d)\n", len(s.Results))
		for i, p := range s.Results {
			printPlace(w, i+1, p)
		}
		return 0
	case session.Failed:
		fmt.Fprintf(w, "Search failed: %v\n", s.LastError)
		return 1
	default:
		fmt.Fprintf(w, "Unexpected state: %s\n", s.Phase)
		return 1
	}
}

func printPlace(w io.Writer, n int, p place.Place) {
	fmt.Fprintf(w, "%d. %s  %s %.1f\n", n, p.Name, place.StarsFor(p.Rating), p.Rating)
	if p.Address != "" {
		fmt.Fprintf(w, "   %s\n", p.Address)
	}
	if p.WorkingHours != "" {
		fmt.Fprintf(w, "   %s\n", p.WorkingHours)
	}
	if uri := p.PhoneURI(); uri != "" {
		fmt.Fprintf(w, "   phone: %s\n", p.Phone)
	}
	if uri := p.WebsiteURI(); uri != "" {
		fmt.Fprintf(w, "   website: %s\n", uri)
	}
	if uri := p.DirectionsURI(); uri != "" {
		fmt.Fprintf(w, "   directions: %s\n", uri)
	}
}

// noCapture backs sessions that only ever submit files.
type noCapture struct{}

func (noCapture) RequestPermission(context.Context) (bool, error) { return false, nil }

func (noCapture) Start(context.Context, encoder.Config) (session.Handle, error) {
	return 0, fmt.Errorf("no microphone in file mode")
}

func (noCapture) Stop(context.Context, session.Handle) (*encoder.Clip, error) { return nil, nil }
