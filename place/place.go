// Package place holds the search-result records returned by the remote
// place-search service and the display helpers derived from them.
package place

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Placeholder is shown when a place has no image.
const Placeholder = "https://via.placeholder.com/150"

// ErrNotList is returned when a response body is not a JSON array. It marks a
// remote-service bug rather than a network problem.
var ErrNotList = errors.New("response root is not a JSON array")

type LocationLinks struct {
	Directions string `json:"directions"`
}

type Place struct {
	Name          string        `json:"name"`
	Rating        float64       `json:"rating"`
	Address       string        `json:"address"`
	WorkingHours  string        `json:"working_hours"`
	Phone         string        `json:"phone"`
	Website       string        `json:"website"`
	Image         string        `json:"image"`
	LocationLinks LocationLinks `json:"location_links"`
}

// wirePlace mirrors Place with raw fields so one malformed value does not
// reject the whole record.
type wirePlace struct {
	Name          json.RawMessage `json:"name"`
	Rating        json.RawMessage `json:"rating"`
	Address       json.RawMessage `json:"address"`
	WorkingHours  json.RawMessage `json:"working_hours"`
	Phone         json.RawMessage `json:"phone"`
	Website       json.RawMessage `json:"website"`
	Image         json.RawMessage `json:"image"`
	LocationLinks json.RawMessage `json:"location_links"`
}

// DecodeList parses a response body. The root must be a JSON array; any other
// shape (object, null, scalar) yields ErrNotList. Elements are decoded
// leniently: fields of the wrong type become zero values and non-object
// elements become empty places.
func DecodeList(body []byte) ([]Place, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body: %w", ErrNotList)
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("invalid json: %w", ErrNotList)
		}
		return nil, fmt.Errorf("got %s: %w", kindOf(trimmed[0]), ErrNotList)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("parse array: %v: %w", err, ErrNotList)
	}

	places := make([]Place, 0, len(raw))
	for _, elem := range raw {
		places = append(places, decodeOne(elem))
	}
	return places, nil
}

func decodeOne(elem json.RawMessage) Place {
	var w wirePlace
	if err := json.Unmarshal(elem, &w); err != nil {
		return Place{}
	}
	p := Place{
		Name:         str(w.Name),
		Rating:       num(w.Rating),
		Address:      str(w.Address),
		WorkingHours: str(w.WorkingHours),
		Phone:        str(w.Phone),
		Website:      str(w.Website),
		Image:        str(w.Image),
	}
	var links struct {
		Directions json.RawMessage `json:"directions"`
	}
	if json.Unmarshal(w.LocationLinks, &links) == nil {
		p.LocationLinks.Directions = str(links.Directions)
	}
	return p
}

func str(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// num accepts numbers and numeric strings ("4.5").
func num(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

func kindOf(first byte) string {
	switch first {
	case '{':
		return "object"
	case 'n':
		return "null"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}

// ImageOr returns the image URI or fallback when none was supplied.
func (p Place) ImageOr(fallback string) string {
	if strings.TrimSpace(p.Image) == "" {
		return fallback
	}
	return p.Image
}

// PhoneURI returns a tel: URI for the phone number, or "" if there is none.
func (p Place) PhoneURI() string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(p.Phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "tel:" + b.String()
}

// WebsiteURI returns the website as an absolute http(s) URI, or "".
func (p Place) WebsiteURI() string {
	w := strings.TrimSpace(p.Website)
	if w == "" {
		return ""
	}
	if !strings.Contains(w, "://") {
		w = "https://" + w
	}
	u, err := url.Parse(w)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// DirectionsURI returns the navigation link when it is an absolute URI.
func (p Place) DirectionsURI() string {
	d := strings.TrimSpace(p.LocationLinks.Directions)
	if d == "" {
		return ""
	}
	u, err := url.Parse(d)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.String()
}
