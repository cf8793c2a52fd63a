// Package crawler defines the records and collaborator interfaces shared by the
// crawl, extraction and publishing stages.
package crawler

import (
	"time"

	"github.com/samber/mo"

	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// Listing is one distinct apartment detail page found while walking an origin's results.
type Listing struct {
	Origin origin.Origin
	URL    string
}

// RawRecord is the unmodified markup of one listing as persisted.
type RawRecord struct {
	ID         int64  `json:"id"`
	OriginCode string `json:"origin"`
	URL        string `json:"url"`
	Content    string `json:"-"`
}

// ExtractedRecord holds the structured fields read from one RawRecord.
// Every field except Headline may legitimately be absent.
type ExtractedRecord struct {
	RawID        int64                `json:"raw_id"`
	Headline     string               `json:"headline"`
	Description  mo.Option[string]    `json:"description"`
	DatePosted   mo.Option[time.Time] `json:"date_posted"`
	Price        mo.Option[int64]     `json:"price"`
	RawAddress   mo.Option[string]    `json:"raw_address"`
	NumRooms     mo.Option[float64]   `json:"num_rooms"`
	NumBathrooms mo.Option[float64]   `json:"num_bathrooms"`
}

// Address is a geocoded location for one raw record.
type Address struct {
	RawID            int64   `json:"raw_id"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
}

// Apartment is the flattened, publish-ready join of a raw record, its extracted
// fields and its geocoded address.
type Apartment struct {
	ID                  int64      `json:"id"`
	URL                 string     `json:"url"`
	Headline            string     `json:"headline"`
	Description         *string    `json:"description"`
	DescriptionMarkdown *string    `json:"description_markdown,omitempty"`
	DatePosted          *time.Time `json:"date_posted"`
	Price               *int64     `json:"price"`
	NumRooms            *float64   `json:"num_rooms"`
	NumBathrooms        *float64   `json:"num_bathrooms"`
	Latitude            float64    `json:"latitude"`
	Longitude           float64    `json:"longitude"`
	FormattedAddress    string     `json:"formatted_address"`
	Origin              string     `json:"origin"`
}

// Run records when a crawl started and which origins it covered.
type Run struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Origins   []origin.Origin `json:"-"`
}

// RawQuery scopes a read of raw records. Zero values mean "all".
type RawQuery struct {
	URL   string
	Limit int
}
