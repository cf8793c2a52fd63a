// Package memory keeps records and blobs in process memory for development
// runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

// ErrUnknownRawRecord is returned when a detail or address references a raw
// record that was never inserted.
var ErrUnknownRawRecord = errors.New("unknown raw record")

// Store is an in-memory crawler.Store.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	origins   map[string]origin.Origin
	runs      []crawler.Run
	raws      []crawler.RawRecord
	details   map[int64]crawler.ExtractedRecord
	addresses map[int64]crawler.Address
}

var _ crawler.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		origins:   make(map[string]origin.Origin),
		details:   make(map[int64]crawler.ExtractedRecord),
		addresses: make(map[int64]crawler.Address),
	}
}

// EnsureSchema is a no-op.
func (s *Store) EnsureSchema(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// RecordRun stores the run and upserts its origins.
func (s *Store) RecordRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range run.Origins {
		s.origins[o.ShortCode] = o
	}
	run.Origins = nil
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns returns runs oldest first.
func (s *Store) ListRuns(context.Context) ([]crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]crawler.Run(nil), s.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ListOrigins returns stored origins ordered by short code.
func (s *Store) ListOrigins(context.Context) ([]origin.Origin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.origins)
	sort.Slice(out, func(i, j int) bool { return out[i].ShortCode < out[j].ShortCode })
	return out, nil
}

// InsertRaw appends a raw record and assigns it the next id.
func (s *Store) InsertRaw(_ context.Context, record crawler.RawRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	s.raws = append(s.raws, record)
	return record.ID, nil
}

// ListRaw returns raw records in insertion order.
func (s *Store) ListRaw(_ context.Context, query crawler.RawQuery) ([]crawler.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Filter(s.raws, func(r crawler.RawRecord, _ int) bool {
		return query.URL == "" || r.URL == query.URL
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// DeleteDetails drops every extracted record.
func (s *Store) DeleteDetails(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = make(map[int64]crawler.ExtractedRecord)
	return nil
}

// InsertDetails stores rec, replacing an earlier extraction.
func (s *Store) InsertDetails(_ context.Context, rec crawler.ExtractedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRaw(rec.RawID) {
		return ErrUnknownRawRecord
	}
	s.details[rec.RawID] = rec
	return nil
}

// ListDetails returns extracted records ordered by raw id.
func (s *Store) ListDetails(context.Context) ([]crawler.ExtractedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Values(s.details)
	sort.Slice(out, func(i, j int) bool { return out[i].RawID < out[j].RawID })
	return out, nil
}

// InsertAddress stores a geocoded address, replacing an earlier one.
func (s *Store) InsertAddress(_ context.Context, addr crawler.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRaw(addr.RawID) {
		return ErrUnknownRawRecord
	}
	s.addresses[addr.RawID] = addr
	return nil
}

// ListApartments joins raw records with their details and addresses,
// leaving out records missing either.
func (s *Store) ListApartments(context.Context) ([]crawler.Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Apartment
	for _, raw := range s.raws {
		det, ok := s.details[raw.ID]
		if !ok {
			continue
		}
		addr, ok := s.addresses[raw.ID]
		if !ok {
			continue
		}
		out = append(out, crawler.Apartment{
			ID:               raw.ID,
			URL:              raw.URL,
			Headline:         det.Headline,
			Description:      pointer(det.Description),
			DatePosted:       pointer(det.DatePosted),
			Price:            pointer(det.Price),
			NumRooms:         pointer(det.NumRooms),
			NumBathrooms:     pointer(det.NumBathrooms),
			Latitude:         addr.Latitude,
			Longitude:        addr.Longitude,
			FormattedAddress: addr.FormattedAddress,
			Origin:           raw.OriginCode,
		})
	}
	return out, nil
}

func (s *Store) hasRaw(id int64) bool {
	return lo.ContainsBy(s.raws, func(r crawler.RawRecord) bool { return r.ID == id })
}

func pointer[T any](o mo.Option[T]) *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}
