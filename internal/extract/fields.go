package extract

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"
)

var priceRe = regexp.MustCompile(`(\d+)(?:,(\d+))?`)

// halfGlyph is how the site writes half rooms ("4 ½").
const halfGlyph = "½"

func readHeadline(doc *goquery.Document) (string, bool) {
	sel := doc.FindMatcher(headlineSelector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

// readDescription keeps the container's markup so it can be rendered later.
func readDescription(doc *goquery.Document) mo.Option[string] {
	sel := doc.FindMatcher(descriptionSelector).First()
	if sel.Length() == 0 {
		return mo.None[string]()
	}
	fragment, err := goquery.OuterHtml(sel)
	if err != nil {
		return mo.None[string]()
	}
	return mo.Some(fragment)
}

func readPrice(doc *goquery.Document) mo.Option[int64] {
	sel := doc.FindMatcher(priceSelector).First()
	if sel.Length() == 0 {
		return mo.None[int64]()
	}
	return parsePrice(sel.Text())
}

// parsePrice converts "1 234,56 $" into minor units (123456).
func parsePrice(raw string) mo.Option[int64] {
	kept := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' {
			return r
		}
		return -1
	}, raw)
	m := priceRe.FindStringSubmatch(kept)
	if m == nil {
		return mo.None[int64]()
	}
	whole, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return mo.None[int64]()
	}
	var fraction int64
	if m[2] != "" {
		if fraction, err = strconv.ParseInt(m[2], 10, 64); err != nil {
			return mo.None[int64]()
		}
	}
	if whole > (math.MaxInt64-fraction)/100 {
		return mo.None[int64]()
	}
	return mo.Some(whole*100 + fraction)
}

// labelValue finds the first label element mentioning label and returns the
// text around it with the label itself removed.
func labelValue(doc *goquery.Document, label string) (string, bool) {
	var value string
	found := false
	doc.FindMatcher(labelSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, label) {
			return true
		}
		value = strings.Trim(strings.Replace(text, label, " ", 1), " \t\n:")
		found = true
		return false
	})
	return value, found
}

func readRooms(doc *goquery.Document, locale Locale) mo.Option[float64] {
	raw, ok := labelValue(doc, locale.RoomsLabel)
	if !ok {
		return mo.None[float64]()
	}
	return parseRooms(raw)
}

// parseRooms sums up to two fraction tokens exactly, so "4 ½" is 4 + 1/2.
func parseRooms(raw string) mo.Option[float64] {
	tokens := strings.Fields(strings.ReplaceAll(raw, halfGlyph, " 1/2 "))
	if len(tokens) == 0 {
		return mo.None[float64]()
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	sum := new(big.Rat)
	for _, tok := range tokens {
		r, ok := new(big.Rat).SetString(tok)
		if !ok {
			return mo.None[float64]()
		}
		sum.Add(sum, r)
	}
	if sum.Sign() < 0 {
		return mo.None[float64]()
	}
	f, _ := sum.Float64()
	return mo.Some(f)
}

func readBathrooms(doc *goquery.Document, locale Locale, pattern *regexp.Regexp) mo.Option[float64] {
	raw, ok := labelValue(doc, locale.BathroomsLabel)
	if !ok {
		return mo.None[float64]()
	}
	return parseBathrooms(raw, pattern)
}

// parseBathrooms reads a whole count with an optional half suffix ("2,5").
func parseBathrooms(raw string, pattern *regexp.Regexp) mo.Option[float64] {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return mo.None[float64]()
	}
	whole, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return mo.None[float64]()
	}
	val := float64(whole)
	if m[2] != "" {
		val += 0.5
	}
	return mo.Some(val)
}

func bathroomPattern(locale Locale) *regexp.Regexp {
	return regexp.MustCompile(`(\d+)(` + regexp.QuoteMeta(locale.DecimalSeparator) + `5)?`)
}

func readAddress(doc *goquery.Document) mo.Option[string] {
	sel := doc.FindMatcher(addressSelector).First()
	if sel.Length() == 0 {
		return mo.None[string]()
	}
	address := strings.TrimSpace(strings.TrimPrefix(sel.Text(), ", "))
	if address == "" {
		return mo.None[string]()
	}
	return mo.Some(address)
}

// readDatePosted prefers the machine-readable datetime attribute and falls
// back to the human-readable title attribute.
func readDatePosted(doc *goquery.Document, locale Locale, loc *time.Location) mo.Option[time.Time] {
	if sel := doc.FindMatcher(isoDateSelector).First(); sel.Length() > 0 {
		if raw, ok := sel.Attr("datetime"); ok {
			if ts, ok := parseISODate(strings.TrimSpace(raw), loc); ok {
				return mo.Some(ts)
			}
		}
	}
	if sel := doc.FindMatcher(legacyDateSelector).First(); sel.Length() > 0 {
		raw, _ := sel.Attr("title")
		if ts, ok := locale.parseLegacyDate(raw, loc); ok {
			return mo.Some(ts)
		}
	}
	return mo.None[time.Time]()
}

// isoLayouts are the ISO-8601 forms seen in datetime attributes. Only the
// first carries an offset.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseISODate reads values without an offset in loc and returns UTC.
func parseISODate(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
