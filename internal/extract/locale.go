package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legacyDateLayout matches "6 5 2020 19:39" once the month name has been
// replaced by its number.
const legacyDateLayout = "2 1 2006 15:04"

// Locale carries the language-specific tokens the extractors look for. It is
// fixed to the source site's language rather than the host environment.
type Locale struct {
	Code             string
	Tag              language.Tag
	Months           [12]string
	RoomsLabel       string
	BathroomsLabel   string
	DecimalSeparator string
}

// French is the locale of the Quebec listings.
var French = Locale{
	Code: "fr",
	Tag:  language.French,
	Months: [12]string{
		"janvier", "février", "mars", "avril", "mai", "juin",
		"juillet", "août", "septembre", "octobre", "novembre", "décembre",
	},
	RoomsLabel:       "Pièces",
	BathroomsLabel:   "Salles de bain",
	DecimalSeparator: ",",
}

// English is used when the site is crawled with its English interface.
var English = Locale{
	Code: "en",
	Tag:  language.English,
	Months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	RoomsLabel:       "Bedrooms",
	BathroomsLabel:   "Bathrooms",
	DecimalSeparator: ".",
}

// LookupLocale resolves a locale code such as "fr" or "en-CA".
func LookupLocale(code string) (Locale, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", code, err)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "fr":
		return French, nil
	case "en":
		return English, nil
	default:
		return Locale{}, fmt.Errorf("unsupported locale %q", code)
	}
}

// month resolves a month name, ignoring case and accents.
func (l Locale) month(name string) (time.Month, bool) {
	want := fold(strings.TrimSuffix(name, "."))
	for i, m := range l.Months {
		if fold(m) == want {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// parseLegacyDate reads "6 mai 2020 19:39" style timestamps in loc.
func (l Locale) parseLegacyDate(raw string, loc *time.Location) (time.Time, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 4 {
		return time.Time{}, false
	}
	m, ok := l.month(fields[1])
	if !ok {
		return time.Time{}, false
	}
	fields[1] = strconv.Itoa(int(m))
	ts, err := time.ParseInLocation(legacyDateLayout, strings.Join(fields, " "), loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}
