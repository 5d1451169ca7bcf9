package encoder

import (
	"fmt"
	"strings"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format is the container an upload is encoded in.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatM4A  Format = "m4a" // pre-encoded files only
)

// ParseFormat accepts a flag value or a file extension (".wav").
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case FormatWAV, FormatFLAC, FormatM4A:
		return f, nil
	default:
		return "", fmt.Errorf("unknown audio format %q (use wav or flac)", s)
	}
}

func (f Format) MIMEType() string {
	switch f {
	case FormatFLAC:
		return "audio/flac"
	case FormatM4A:
		return "audio/m4a"
	default:
		return "audio/wav"
	}
}

func (f Format) Filename() string {
	return "recording." + string(f)
}

// Config describes how a capture is encoded. It is opaque to the session
// beyond producing a decodable payload.
type Config struct {
	Format     Format
	SampleRate uint32
	Channels   uint32
}

func DefaultConfig() Config {
	return Config{Format: FormatWAV, SampleRate: SampleRate, Channels: Channels}
}

// Clip is a completed, stopped recording ready for upload.
type Clip struct {
	Data     []byte
	Format   Format
	Duration time.Duration
}

func (c *Clip) Empty() bool { return c == nil || len(c.Data) == 0 }

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// New returns an encoder for cfg. M4A is accepted for uploads but cannot be
// produced from PCM.
func New(cfg Config) (Encoder, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = Channels
	}
	switch cfg.Format {
	case FormatWAV, "":
		return NewWAV(cfg.SampleRate, cfg.Channels), nil
	case FormatFLAC:
		return NewFlac(cfg.SampleRate, cfg.Channels)
	default:
		return nil, fmt.Errorf("cannot encode %q from PCM", cfg.Format)
	}
}
