package transport

import (
	"context"
	"fmt"
	"time"

	"voxplaces/encoder"
	"voxplaces/place"
)

// Fake answers every upload with a canned body, for tests and the headless
// mode. Body goes through the same decoding as a real response.
type Fake struct {
	Body  []byte
	Err   error
	Delay time.Duration
}

func NewFake(body string, err error) *Fake {
	return &Fake{Body: []byte(body), Err: err}
}

func (f *Fake) Submit(ctx context.Context, clip *encoder.Clip) ([]place.Place, error) {
	if clip.Empty() {
		return nil, errEmptyClip
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, fmt.Errorf("fake transport error: %w", f.Err)
	}
	return place.DecodeList(f.Body)
}
