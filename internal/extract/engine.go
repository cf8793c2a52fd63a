// Package extract turns raw listing markup into structured records and runs
// the extraction pass over stored raw records.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
)

// ErrMalformedDocument marks a raw record whose markup cannot yield a record.
var ErrMalformedDocument = errors.New("malformed listing document")

// Engine applies the per-field extractors to one document at a time. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	locale    Locale
	loc       *time.Location
	bathrooms *regexp.Regexp
}

// New builds an Engine. A zero Locale means French and a nil location means UTC.
func New(locale Locale, loc *time.Location) *Engine {
	if locale.Code == "" {
		locale = French
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		locale:    locale,
		loc:       loc,
		bathrooms: bathroomPattern(locale),
	}
}

// Extract parses raw.Content and reads every field independently. Missing
// fields come back absent; only a document without a headline is an error.
func (e *Engine) Extract(raw crawler.RawRecord) (crawler.ExtractedRecord, error) {
	if strings.TrimSpace(raw.Content) == "" {
		return crawler.ExtractedRecord{}, fmt.Errorf("%w: empty content", ErrMalformedDocument)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Content))
	if err != nil {
		return crawler.ExtractedRecord{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	headline, ok := readHeadline(doc)
	if !ok {
		return crawler.ExtractedRecord{}, fmt.Errorf("%w: no headline element", ErrMalformedDocument)
	}

	return crawler.ExtractedRecord{
		RawID:        raw.ID,
		Headline:     headline,
		Description:  readDescription(doc),
		DatePosted:   readDatePosted(doc, e.locale, e.loc),
		Price:        readPrice(doc),
		RawAddress:   readAddress(doc),
		NumRooms:     readRooms(doc, e.locale),
		NumBathrooms: readBathrooms(doc, e.locale, e.bathrooms),
	}, nil
}
