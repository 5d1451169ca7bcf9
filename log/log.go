package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

const diagFileName = "diagnostics_log.txt"

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absFromWD(flagPath)
	}

	// Priority 2: VOX_LOG_PATH environment variable
	if envPath := os.Getenv("VOX_LOG_PATH"); envPath != "" {
		return absFromWD(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absFromWD(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady = false
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Phase records a session transition.
func Phase(from, to string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("from", from).Str("to", to).Msg("phase")
}

// Failure records a classified failure. The kind keeps remote contract
// violations apart from network errors.
func Failure(kind string, err error) {
	if !ready() {
		return
	}
	diagLog.Error().Str("kind", kind).Err(err).Msg("failure")
}

type UploadData struct {
	Format    string
	SizeKB    float64
	AudioS    float64
	ElapsedMs float64
	Places    int
	OK        bool
}

func Upload(d UploadData) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("format", d.Format).
		Float64("size_kb", d.SizeKB).
		Float64("audio_s", d.AudioS).
		Float64("elapsed_ms", d.ElapsedMs).
		Int("places", d.Places).
		Bool("ok", d.OK).
		Msg("upload")
}

type NetworkData struct {
	Status     int
	ConnReused bool
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	BodyKB     float64
}

// Network records the HTTP timings of one upload.
func Network(d NetworkData) {
	if !ready() {
		return
	}
	connStatus := "new"
	if d.ConnReused {
		connStatus = "reused"
	}
	diagLog.Info().
		Int("status", d.Status).
		Str("conn", connStatus).
		Float64("dns_ms", d.DNSMs).
		Float64("tls_ms", d.TLSMs).
		Float64("ttfb_ms", d.TTFBMs).
		Float64("total_ms", d.TotalMs).
		Float64("body_kb", d.BodyKB).
		Msg("network")
}

func SessionStart(endpoint, format string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("endpoint", endpoint).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(searches int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("searches", searches).
		Msg("session_end")
}
