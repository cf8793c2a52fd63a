package extract

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
)

// SummaryFields lists the reported fields in table order.
var SummaryFields = []string{
	"num_rooms",
	"num_bathrooms",
	"price",
	"description",
	"date_posted",
	"raw_address",
	"headline",
}

// Summary is the data-quality report of one extraction pass.
type Summary struct {
	Total     int
	Extracted int
	Skipped   int
	Present   map[string]int
}

func newSummary(total int) *Summary {
	return &Summary{Total: total, Present: make(map[string]int, len(SummaryFields))}
}

func (s *Summary) add(rec crawler.ExtractedRecord) []string {
	s.Extracted++
	fields := presentFields(rec)
	for _, f := range fields {
		s.Present[f]++
	}
	return fields
}

// Percent is the share of extracted records with field populated.
func (s *Summary) Percent(field string) float64 {
	if s.Extracted == 0 {
		return 0
	}
	return float64(s.Present[field]) / float64(s.Extracted) * 100
}

// WriteTable renders the per-field presence table.
func (s *Summary) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "property\tnum present\t% present")
	fmt.Fprintln(tw, "--------\t-----------\t---------")
	for _, field := range SummaryFields {
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\n", field, s.Present[field], s.Percent(field))
	}
	return tw.Flush()
}

func presentFields(rec crawler.ExtractedRecord) []string {
	present := map[string]bool{
		"num_rooms":     rec.NumRooms.IsPresent(),
		"num_bathrooms": rec.NumBathrooms.IsPresent(),
		"price":         rec.Price.IsPresent(),
		"description":   rec.Description.IsPresent(),
		"date_posted":   rec.DatePosted.IsPresent(),
		"raw_address":   rec.RawAddress.IsPresent(),
		// A record only extracts once its headline element matched, even if
		// that element is empty.
		"headline": true,
	}
	out := make([]string, 0, len(SummaryFields))
	for _, f := range SummaryFields {
		if present[f] {
			out = append(out, f)
		}
	}
	return out
}
