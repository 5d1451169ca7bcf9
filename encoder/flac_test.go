package encoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(n int, freq float64) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(math.Sin(2*math.Pi*freq*float64(i)/SampleRate) * 8000)
	}
	return samples
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(SampleRate, 440)

	enc, err := NewFlac(SampleRate, Channels)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		block := samples[i:end]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}

	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	stream, err := flac.New(bytes.NewReader(flacData))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stream.Info.SampleRate != SampleRate || stream.Info.NChannels != Channels {
		t.Errorf("stream info = %d Hz / %d ch", stream.Info.SampleRate, stream.Info.NChannels)
	}
}

func TestFlacStereo(t *testing.T) {
	enc, err := NewFlac(44100, 2)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	mono := sine(1024, 220)
	interleaved := make([]int16, 0, len(mono)*2)
	for _, s := range mono {
		interleaved = append(interleaved, s, -s)
	}
	if err := enc.EncodeBlock(interleaved); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != 1024 {
		t.Errorf("TotalFrames = %d, want 1024", enc.TotalFrames())
	}
}

func TestFlacRejectsSurround(t *testing.T) {
	if _, err := NewFlac(SampleRate, 6); err == nil {
		t.Error("expected error for 6 channels")
	}
}
