package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"golang.org/x/time/rate"

	"voxplaces/encoder"
	"voxplaces/log"
	"voxplaces/place"
)

// MinInterval is the minimum gap between two uploads.
const MinInterval = 750 * time.Millisecond

var errEmptyClip = errors.New("empty clip")

// HTTP posts clips as multipart/form-data to a single endpoint.
type HTTP struct {
	client   *TracedClient
	endpoint string
	limiter  *rate.Limiter
}

func NewHTTP(endpoint string) (*HTTP, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	return &HTTP{
		client:   NewTracedClient(),
		endpoint: endpoint,
		limiter:  rate.NewLimiter(rate.Every(MinInterval), 1),
	}, nil
}

func (h *HTTP) Endpoint() string { return h.endpoint }

// Warm pre-opens a connection in the background.
func (h *HTTP) Warm() {
	go h.client.Warm(h.endpoint)
}

// Submit uploads clip in the "file" field and decodes the place list. A
// response whose root is not a JSON array yields an error wrapping
// place.ErrNotList.
func (h *HTTP) Submit(ctx context.Context, clip *encoder.Clip) ([]place.Place, error) {
	if clip.Empty() {
		return nil, errEmptyClip
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, contentType, err := multipartBody(clip)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	m := resp.Metrics
	log.Network(log.NetworkData{
		Status:     resp.StatusCode,
		ConnReused: m.ConnReused,
		DNSMs:      ms(m.DNS),
		TLSMs:      ms(m.TLS),
		TTFBMs:     ms(m.TTFB),
		TotalMs:    ms(m.Total),
		BodyKB:     float64(len(resp.Body)) / 1024,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(resp.Body)}
	}
	return place.DecodeList(resp.Body)
}

func multipartBody(clip *encoder.Clip) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, clip.Format.Filename()))
	hdr.Set("Content-Type", clip.Format.MIMEType())
	part, err := writer.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
