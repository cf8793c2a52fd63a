package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
)

type fakeStore struct {
	raws      []crawler.RawRecord
	details   []crawler.ExtractedRecord
	lastQuery crawler.RawQuery
	deleted   bool
	insertErr error
}

func (f *fakeStore) ListRaw(_ context.Context, q crawler.RawQuery) ([]crawler.RawRecord, error) {
	f.lastQuery = q
	return f.raws, nil
}

func (f *fakeStore) DeleteDetails(context.Context) error {
	f.deleted = true
	f.details = nil
	return nil
}

func (f *fakeStore) InsertDetails(_ context.Context, rec crawler.ExtractedRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.details = append(f.details, rec)
	return nil
}

func (f *fakeStore) ListDetails(context.Context) ([]crawler.ExtractedRecord, error) {
	return f.details, nil
}

func TestRunSkipsUnparseableRecords(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	store := &fakeStore{raws: []crawler.RawRecord{
		{ID: 1, URL: "https://www.kijiji.ca/v-appartement/1", Content: fullListing},
		{ID: 2, URL: "https://www.kijiji.ca/v-appartement/2", Content: "<html><body>removed</body></html>"},
		{ID: 3, URL: "https://www.kijiji.ca/v-appartement/3", Content: listingWith()},
	}}

	summary, err := NewRunner(store, New(French, time.UTC), zap.New(core), false).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Extracted)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, store.details, 2)
	assert.Equal(t, int64(1), store.details[0].RawID)
	assert.Equal(t, int64(3), store.details[1].RawID)

	entries := logs.FilterMessage("skipping record").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "https://www.kijiji.ca/v-appartement/2", entries[0].ContextMap()["url"])
}

func TestRunProgressLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		progress bool
		want     zapcore.Level
	}{
		{"progress enabled", true, zap.InfoLevel},
		{"progress disabled", false, zap.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zap.DebugLevel)
			store := &fakeStore{raws: []crawler.RawRecord{{ID: 1, Content: fullListing}, {ID: 2, Content: listingWith()}}}

			_, err := NewRunner(store, New(French, time.UTC), zap.New(core), tt.progress).Run(context.Background(), Options{})
			require.NoError(t, err)

			entries := logs.FilterMessage("extracted record").All()
			require.Len(t, entries, 2)
			for _, e := range entries {
				assert.Equal(t, tt.want, e.Level)
			}
			assert.Equal(t, int64(2), entries[1].ContextMap()["done"])
		})
	}
}

func TestSummaryCountsEmptyHeadlineAsPresent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{raws: []crawler.RawRecord{
		{ID: 1, Content: `<html><body><h1 class="title-1"></h1></body></html>`},
		{ID: 2, Content: fullListing},
	}}
	summary, err := NewRunner(store, New(French, time.UTC), nil, false).Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Equal(t, 2, summary.Extracted)
	assert.Equal(t, 2, summary.Present["headline"])
	assert.InDelta(t, 100.0, summary.Percent("headline"), 1e-9)
	assert.Equal(t, 1, summary.Present["price"])
}

func TestRunPassesFiltersAndOverwrites(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		raws:    []crawler.RawRecord{{ID: 9, URL: "https://www.kijiji.ca/v-appartement/9", Content: fullListing}},
		details: []crawler.ExtractedRecord{{RawID: 9, Headline: "stale"}},
	}

	_, err := NewRunner(store, New(French, time.UTC), nil, true).Run(context.Background(), Options{
		URL:       "https://www.kijiji.ca/v-appartement/9",
		Limit:     5,
		Overwrite: true,
	})
	require.NoError(t, err)

	assert.True(t, store.deleted)
	assert.Equal(t, crawler.RawQuery{URL: "https://www.kijiji.ca/v-appartement/9", Limit: 5}, store.lastQuery)
	require.Len(t, store.details, 1)
	assert.NotEqual(t, "stale", store.details[0].Headline)
}

func TestRunStopsOnStorageError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	store := &fakeStore{
		raws:      []crawler.RawRecord{{ID: 1, Content: fullListing}, {ID: 2, Content: fullListing}},
		insertErr: boom,
	}

	summary, err := NewRunner(store, New(French, time.UTC), nil, false).Run(context.Background(), Options{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, summary.Extracted)
}

func TestSummaryTable(t *testing.T) {
	t.Parallel()

	store := &fakeStore{raws: []crawler.RawRecord{
		{ID: 1, Content: fullListing},
		{ID: 2, Content: listingWith(`<span class="currentPrice-1"><span>900 $</span></span>`)},
	}}

	summary, err := NewRunner(store, New(French, time.UTC), nil, false).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Present["price"])
	assert.Equal(t, 1, summary.Present["num_rooms"])
	assert.InDelta(t, 50.0, summary.Percent("num_rooms"), 0.001)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteTable(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2+len(SummaryFields))
	assert.Contains(t, lines[0], "property")
	assert.Contains(t, lines[0], "% present")
	assert.Regexp(t, `^num_rooms\s+1\s+50\.00%$`, lines[2])
	assert.Regexp(t, `^price\s+2\s+100\.00%$`, lines[4])
	assert.Regexp(t, `^headline\s+2\s+100\.00%$`, lines[8])
}

func TestSummaryEmptyRun(t *testing.T) {
	t.Parallel()

	summary, err := NewRunner(&fakeStore{}, New(French, time.UTC), nil, false).Run(context.Background(), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteTable(&buf))
	assert.Contains(t, buf.String(), "0.00%")
	assert.Zero(t, summary.Percent("price"))
}
