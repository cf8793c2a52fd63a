package extract

import (
	"math"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want mo.Option[int64]
	}{
		{name: "thousands and cents", raw: "1 234,56 $", want: mo.Some[int64](123456)},
		{name: "non-breaking space", raw: "1 050,00 $", want: mo.Some[int64](105000)},
		{name: "whole dollars", raw: "950 $", want: mo.Some[int64](95000)},
		{name: "no digits", raw: "Sur demande", want: mo.None[int64]()},
		{name: "empty", raw: "", want: mo.None[int64]()},
		{name: "largest representable", raw: "92 233 720 368 547 758,07 $", want: mo.Some[int64](math.MaxInt64)},
		{name: "overflows minor units", raw: "100000000000000000 $", want: mo.None[int64]()},
		{name: "overflows with cents", raw: "92 233 720 368 547 758,08 $", want: mo.None[int64]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parsePrice(tt.raw))
		})
	}
}

func TestParseRooms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want mo.Option[float64]
	}{
		{name: "half glyph", raw: "4 ½", want: mo.Some(4.5)},
		{name: "glued half glyph", raw: "3½", want: mo.Some(3.5)},
		{name: "whole", raw: "5", want: mo.Some(5.0)},
		{name: "only first two tokens", raw: "2 1/2 7", want: mo.Some(2.5)},
		{name: "not a number", raw: "studio", want: mo.None[float64]()},
		{name: "empty", raw: "", want: mo.None[float64]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseRooms(tt.raw))
		})
	}
}

func TestParseBathrooms(t *testing.T) {
	t.Parallel()

	french := bathroomPattern(French)
	english := bathroomPattern(English)

	assert.Equal(t, mo.Some(2.5), parseBathrooms("2,5", french))
	assert.Equal(t, mo.Some(3.0), parseBathrooms("3", french))
	assert.Equal(t, mo.Some(1.5), parseBathrooms("1.5", english))
	assert.Equal(t, mo.Some(1.0), parseBathrooms("1,5", english))
	assert.Equal(t, mo.None[float64](), parseBathrooms("aucune", french))
}

func TestParseISODate(t *testing.T) {
	t.Parallel()

	montreal := time.FixedZone("EDT", -4*60*60)
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{name: "utc offset", raw: "2020-05-06T23:39:00Z", want: time.Date(2020, time.May, 6, 23, 39, 0, 0, time.UTC), ok: true},
		{name: "fractional seconds", raw: "2020-05-06T23:39:00.000Z", want: time.Date(2020, time.May, 6, 23, 39, 0, 0, time.UTC), ok: true},
		{name: "numeric offset", raw: "2020-05-06T19:39:00-04:00", want: time.Date(2020, time.May, 6, 23, 39, 0, 0, time.UTC), ok: true},
		{name: "no offset uses location", raw: "2020-05-06T19:39:00", want: time.Date(2020, time.May, 6, 23, 39, 0, 0, time.UTC), ok: true},
		{name: "no offset with fraction", raw: "2020-05-06T19:39:00.5", want: time.Date(2020, time.May, 6, 23, 39, 0, 500000000, time.UTC), ok: true},
		{name: "minutes only", raw: "2020-05-06T19:39", want: time.Date(2020, time.May, 6, 23, 39, 0, 0, time.UTC), ok: true},
		{name: "date only", raw: "2020-05-06", want: time.Date(2020, time.May, 6, 4, 0, 0, 0, time.UTC), ok: true},
		{name: "words", raw: "yesterday"},
		{name: "empty", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseISODate(tt.raw, montreal)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}
