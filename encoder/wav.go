package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVHeaderSize is the length of the canonical PCM header go-audio writes.
const WAVHeaderSize = 44

// WAVEncoder streams PCM16 samples through a go-audio encoder into memory.
// The RIFF and data sizes are patched on Close.
type WAVEncoder struct {
	buf         seekBuffer
	enc         *wav.Encoder
	format      *audio.Format
	out         []byte
	closed      bool
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
}

func NewWAV(sampleRate, channels uint32) *WAVEncoder {
	e := &WAVEncoder{
		format: &audio.Format{NumChannels: int(channels), SampleRate: int(sampleRate)},
	}
	e.enc = wav.NewEncoder(&e.buf, int(sampleRate), BitsPerSample, int(channels), 1)
	return e
}

func (e *WAVEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	start := time.Now()
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	if err := e.enc.Write(e.intBuffer(data)); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	e.totalFrames += uint64(len(block)) / uint64(e.format.NumChannels)
	e.encodeTime += time.Since(start)
	return nil
}

func (e *WAVEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.totalFrames == 0 {
		// header and data chunk are only emitted on the first write
		if err := e.enc.Write(e.intBuffer(nil)); err != nil {
			return fmt.Errorf("wav write: %w", err)
		}
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("wav close: %w", err)
	}
	e.out = e.buf.Bytes()
	return nil
}

func (e *WAVEncoder) intBuffer(data []int) *audio.IntBuffer {
	return &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
}

// Bytes returns the finished file after Close, or nil before it.
func (e *WAVEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WAVEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

func (e *WAVEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WAVEncoder) EncodeTime() time.Duration {
	return e.encodeTime
}

// EncodeWAV wraps raw PCM16 little-endian samples in a WAV file.
func EncodeWAV(pcm []byte, sampleRate, channels uint32) ([]byte, error) {
	enc := NewWAV(sampleRate, channels)
	block := make([]int16, len(pcm)/2)
	for i := range block {
		block[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	if len(block) > 0 {
		if err := enc.EncodeBlock(block); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// PCM is decoded 16-bit audio with its stream format.
type PCM struct {
	Data       []byte
	SampleRate uint32
	Channels   uint32
}

// DecodeWAV walks the RIFF chunks of a 16-bit PCM WAV file and returns its
// samples as little-endian bytes. Chunks other than fmt and data are skipped.
func DecodeWAV(data []byte) (*PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, errors.New("not a PCM wav file")
	}
	if d.BitDepth != BitsPerSample {
		return nil, fmt.Errorf("unsupported bit depth %d", d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading wav samples: %w", err)
	}
	pcm := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return &PCM{Data: pcm, SampleRate: d.SampleRate, Channels: uint32(d.NumChans)}, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the go-audio encoder, which
// seeks back to patch chunk sizes.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte {
	return b.data
}
