package encoder

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAVEncoder(t *testing.T) {
	enc := NewWAV(SampleRate, Channels)
	if enc.Bytes() != nil {
		t.Error("Bytes before Close should be nil")
	}
	block := []int16{0, 1, -1, 32767, -32768}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	data := enc.Bytes()
	if len(data) != WAVHeaderSize+len(block)*2 {
		t.Fatalf("len = %d, want %d", len(data), WAVHeaderSize+len(block)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad header: %q", data[:WAVHeaderSize])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(block)*2) {
		t.Errorf("data size = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[WAVHeaderSize+6:])); got != 32767 {
		t.Errorf("sample 3 = %d, want 32767", got)
	}
	if enc.TotalFrames() != uint64(len(block)) {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
}

func TestWAVEncoderStereoRoundTrip(t *testing.T) {
	enc := NewWAV(44100, 2)
	if err := enc.EncodeBlock([]int16{100, -100, 200, -200}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	data := enc.Bytes()
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 4 {
		t.Errorf("block align = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 44100*4 {
		t.Errorf("byte rate = %d", got)
	}

	pcm, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if pcm.SampleRate != 44100 || pcm.Channels != 2 {
		t.Errorf("format = %d Hz x%d", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Data) != 8 || int16(binary.LittleEndian.Uint16(pcm.Data[6:])) != -200 {
		t.Errorf("pcm = %v", pcm.Data)
	}
}

func TestWAVEncoderEmpty(t *testing.T) {
	enc := NewWAV(SampleRate, Channels)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	data := enc.Bytes()
	if len(data) != WAVHeaderSize {
		t.Fatalf("len = %d, want bare header", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 0 {
		t.Errorf("data size = %d", got)
	}
	if err := enc.EncodeBlock([]int16{1}); err == nil {
		t.Error("EncodeBlock after Close should fail")
	}
}

// wavWithList builds a 16 kHz mono file whose LIST/INFO chunk sits between
// fmt and data, as many editors write it.
func wavWithList(pcm []byte) []byte {
	var b bytes.Buffer
	le := func(v any) { binary.Write(&b, binary.LittleEndian, v) }
	info := []byte("INFOINAM\x04\x00\x00\x00test")
	b.WriteString("RIFF")
	le(uint32(4 + 24 + 8 + len(info) + 8 + len(pcm)))
	b.WriteString("WAVEfmt ")
	le(uint32(16))
	le(uint16(1))
	le(uint16(1))
	le(uint32(16000))
	le(uint32(32000))
	le(uint16(2))
	le(uint16(16))
	b.WriteString("LIST")
	le(uint32(len(info)))
	b.Write(info)
	b.WriteString("data")
	le(uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestDecodeWAVSkipsListChunk(t *testing.T) {
	samples := []byte{1, 0, 2, 0, 0xff, 0x7f, 0, 0x80}
	pcm, err := DecodeWAV(wavWithList(samples))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pcm.Data, samples) {
		t.Errorf("loaded %d PCM bytes %v, want %v", len(pcm.Data), pcm.Data, samples)
	}
	if pcm.SampleRate != 16000 || pcm.Channels != 1 {
		t.Errorf("format = %d Hz x%d", pcm.SampleRate, pcm.Channels)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a riff file at all, just text padding")); err == nil {
		t.Error("expected error")
	}
}

func TestParseFormat(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Format
		mime string
		name string
	}{
		{"wav", FormatWAV, "audio/wav", "recording.wav"},
		{".FLAC", FormatFLAC, "audio/flac", "recording.flac"},
		{".m4a", FormatM4A, "audio/m4a", "recording.m4a"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || got.MIMEType() != tt.mime || got.Filename() != tt.name {
				t.Errorf("got %q %q %q", got, got.MIMEType(), got.Filename())
			}
		})
	}
	if _, err := ParseFormat("ogg"); err == nil {
		t.Error("expected error for ogg")
	}
}

func TestNewRejectsM4A(t *testing.T) {
	if _, err := New(Config{Format: FormatM4A}); err == nil {
		t.Error("expected error encoding m4a from PCM")
	}
	enc, err := New(Config{Format: FormatFLAC})
	if err != nil || enc == nil {
		t.Fatalf("New flac: %v", err)
	}
}
