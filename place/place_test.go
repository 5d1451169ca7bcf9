package place

import (
	"errors"
	"math"
	"testing"
)

func TestDecodeListEmptyArray(t *testing.T) {
	got, err := DecodeList([]byte(" [] \n"))
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDecodeListRejectsNonArrays(t *testing.T) {
	for _, body := range []string{
		`{"error":"bad audio"}`,
		`null`,
		`42`,
		`"places"`,
		`true`,
		``,
		`not json`,
		`[{"name":`,
	} {
		t.Run(body, func(t *testing.T) {
			_, err := DecodeList([]byte(body))
			if !errors.Is(err, ErrNotList) {
				t.Errorf("err = %v, want ErrNotList", err)
			}
		})
	}
}

func TestDecodeListFields(t *testing.T) {
	body := `[{
		"name": "Cafe Uno",
		"rating": 4.7,
		"address": "1 Main St",
		"working_hours": "9-17",
		"phone": "+1 (555) 010-2030",
		"website": "cafeuno.example",
		"image": "https://img.example/1.png",
		"location_links": {"directions": "https://maps.example/?q=1"}
	}]`
	got, err := DecodeList([]byte(body))
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	p := got[0]
	want := Place{
		Name:          "Cafe Uno",
		Rating:        4.7,
		Address:       "1 Main St",
		WorkingHours:  "9-17",
		Phone:         "+1 (555) 010-2030",
		Website:       "cafeuno.example",
		Image:         "https://img.example/1.png",
		LocationLinks: LocationLinks{Directions: "https://maps.example/?q=1"},
	}
	if p != want {
		t.Errorf("got %+v\nwant %+v", p, want)
	}
}

func TestDecodeListTolerant(t *testing.T) {
	body := `[
		{"name": 7, "rating": "3.5", "address": null, "location_links": "nope"},
		"stray",
		null,
		{"rating": {"nested": true}, "image": ""}
	]`
	got, err := DecodeList([]byte(body))
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Name != "7" || got[0].Rating != 3.5 || got[0].Address != "" {
		t.Errorf("first = %+v", got[0])
	}
	if got[0].LocationLinks.Directions != "" {
		t.Errorf("directions = %q, want empty", got[0].LocationLinks.Directions)
	}
	if got[1] != (Place{}) || got[2] != (Place{}) {
		t.Errorf("non-object elements should decode empty: %+v %+v", got[1], got[2])
	}
	if got[3].Rating != 0 {
		t.Errorf("rating = %v, want 0", got[3].Rating)
	}
	if got[3].ImageOr(Placeholder) != Placeholder {
		t.Errorf("missing image should fall back to placeholder")
	}
}

func TestStarsFor(t *testing.T) {
	tests := []struct {
		rating float64
		want   Stars
		glyphs string
	}{
		{4.7, Stars{Full: 4, Half: true, Empty: 0}, "★★★★⯨"},
		{4.2, Stars{Full: 4, Empty: 1}, "★★★★☆"},
		{0, Stars{Empty: 5}, "☆☆☆☆☆"},
		{5.3, Stars{Full: 5}, "★★★★★"},
		{-1, Stars{Empty: 5}, "☆☆☆☆☆"},
		{2.5, Stars{Full: 2, Half: true, Empty: 2}, "★★⯨☆☆"},
		{math.NaN(), Stars{Empty: 5}, "☆☆☆☆☆"},
		{math.Inf(1), Stars{Full: 5}, "★★★★★"},
	}
	for _, tt := range tests {
		got := StarsFor(tt.rating)
		if got != tt.want {
			t.Errorf("StarsFor(%v) = %+v, want %+v", tt.rating, got, tt.want)
		}
		if got.Full+got.Empty+boolInt(got.Half) != MaxStars {
			t.Errorf("StarsFor(%v) slots do not sum to %d", tt.rating, MaxStars)
		}
		if s := got.String(); s != tt.glyphs {
			t.Errorf("StarsFor(%v).String() = %q, want %q", tt.rating, s, tt.glyphs)
		}
	}
}

func TestStarsDeterministic(t *testing.T) {
	a, b := StarsFor(4.7), StarsFor(4.7)
	if a != b {
		t.Errorf("%+v != %+v", a, b)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestLinks(t *testing.T) {
	p := Place{
		Phone:         "+1 (555) 010-2030",
		Website:       "cafeuno.example/menu",
		LocationLinks: LocationLinks{Directions: "https://maps.example/?q=1"},
	}
	if got := p.PhoneURI(); got != "tel:+15550102030" {
		t.Errorf("PhoneURI = %q", got)
	}
	if got := p.WebsiteURI(); got != "https://cafeuno.example/menu" {
		t.Errorf("WebsiteURI = %q", got)
	}
	if got := p.DirectionsURI(); got != "https://maps.example/?q=1" {
		t.Errorf("DirectionsURI = %q", got)
	}

	var empty Place
	if empty.PhoneURI() != "" || empty.WebsiteURI() != "" || empty.DirectionsURI() != "" {
		t.Error("empty place should have no links")
	}
	if got := (Place{Website: "ftp://files.example"}).WebsiteURI(); got != "" {
		t.Errorf("non-http website = %q, want empty", got)
	}
	if got := (Place{LocationLinks: LocationLinks{Directions: "not a uri"}}).DirectionsURI(); got != "" {
		t.Errorf("relative directions = %q, want empty", got)
	}
}
