package place

import (
	"math"
	"strings"
)

const MaxStars = 5

// Stars is a rating split into full, half and empty star slots.
type Stars struct {
	Full  int
	Half  bool
	Empty int
}

// StarsFor derives the star slots for a rating. Ratings outside 0..MaxStars
// are clamped and NaN counts as zero, so any float renders.
func StarsFor(rating float64) Stars {
	if math.IsNaN(rating) || rating < 0 {
		rating = 0
	}
	if rating > MaxStars {
		rating = MaxStars
	}
	full := int(math.Floor(rating))
	half := full < MaxStars && rating-float64(full) >= 0.5
	empty := MaxStars - full
	if half {
		empty--
	}
	return Stars{Full: full, Half: half, Empty: empty}
}

// String renders the slots as ★, ⯨ and ☆ glyphs.
func (s Stars) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("★", s.Full))
	if s.Half {
		b.WriteString("⯨")
	}
	b.WriteString(strings.Repeat("☆", s.Empty))
	return b.String()
}
