package doctor

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"voxplaces/encoder"
	"voxplaces/place"
	"voxplaces/transport"
)

type stubTransport struct {
	places []place.Place
	err    error
	block  bool
}

func (s stubTransport) Submit(ctx context.Context, _ *encoder.Clip) ([]place.Place, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.places, s.err
}

func TestProbe(t *testing.T) {
	clip := silentClip(time.Second)
	tests := []struct {
		name    string
		tr      stubTransport
		wantErr string
		wantMsg string
	}{
		{"places", stubTransport{places: make([]place.Place, 3)}, "", "3 place(s)"},
		{"not a list", stubTransport{err: place.ErrNotList}, "not with a list", ""},
		{"status", stubTransport{err: &transport.StatusError{Code: 404}}, "rejected", ""},
		{"network", stubTransport{err: errors.New("connection refused")}, "cannot reach", ""},
		{"timeout", stubTransport{block: true}, "no answer within", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := probe(tt.tr, clip, 50*time.Millisecond)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				if !strings.Contains(msg, tt.wantMsg) {
					t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %v", got)
	}
	if got := rms(make([]byte, 200)); got != 0 {
		t.Errorf("rms(silence) = %v", got)
	}

	pcm := make([]byte, 2000)
	for i := 0; i < 1000; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(16384)))
	}
	if got := rms(pcm); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("rms(const 0.5) = %v", got)
	}
}

func TestSilentClip(t *testing.T) {
	c := silentClip(time.Second)
	if c.Format != encoder.FormatWAV {
		t.Errorf("format = %q", c.Format)
	}
	if want := encoder.WAVHeaderSize + encoder.SampleRate*2; len(c.Data) != want {
		t.Errorf("len = %d, want %d", len(c.Data), want)
	}
	if c.Duration != time.Second {
		t.Errorf("duration = %v", c.Duration)
	}
}
