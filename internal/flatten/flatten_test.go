package flatten

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
	"github.com/JakeFAU/apartment-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var generated = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.RecordRun(ctx, crawler.Run{ID: "run-1", StartedAt: generated.Add(-time.Hour), Origins: []origin.Origin{origin.Quebec}}))

	id, err := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: "https://www.kijiji.ca/v-appartement/1"})
	require.NoError(t, err)
	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{
		RawID:       id,
		Headline:    "Grand 4 ½",
		Description: mo.Some(`<div class="descriptionContainer"><p>Lumineux et <b>rénové</b></p></div>`),
		Price:       mo.Some[int64](95000),
	}))
	require.NoError(t, store.InsertAddress(ctx, crawler.Address{RawID: id, Latitude: 46.8, Longitude: -71.2, FormattedAddress: "Québec"}))

	orphan, err := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: "https://www.kijiji.ca/v-appartement/2"})
	require.NoError(t, err)
	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{RawID: orphan, Headline: "no address"}))
	return store
}

func TestBuildJoinsRecords(t *testing.T) {
	t.Parallel()

	ds, err := New(seededStore(t), fixedClock{generated}, nil).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, generated, ds.GeneratedAt)
	require.Len(t, ds.Runs, 1)
	assert.Equal(t, "run-1", ds.Runs[0].ID)
	assert.Equal(t, []origin.Origin{origin.Quebec}, ds.Origins)
	require.Len(t, ds.Apartments, 1)

	a := ds.Apartments[0]
	assert.Equal(t, "https://www.kijiji.ca/v-appartement/1", a.URL)
	assert.Equal(t, "quebec", a.Origin)
	require.NotNil(t, a.DescriptionMarkdown)
	assert.Contains(t, *a.DescriptionMarkdown, "**rénové**")
	assert.NotContains(t, *a.DescriptionMarkdown, "<p>")
}

func TestWriteEncodesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := New(seededStore(t), fixedClock{generated}, nil).Write(context.Background(), &buf)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2024-03-01T12:00:00Z", decoded["generated_at"])
	apartments, ok := decoded["apartments"].([]any)
	require.True(t, ok)
	first, ok := apartments[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 95000, first["price"])
	assert.Nil(t, first["num_rooms"])
	assert.Contains(t, buf.String(), "<b>rénové</b>")
}

func TestWriteFileEmptyStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "frontend.json")
	ds, err := New(memory.NewStore(), fixedClock{generated}, nil).WriteFile(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, ds.Apartments)

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"apartments":[]`)
	assert.Contains(t, string(raw), `"runs":[]`)
}

type failingSource struct{}

func (failingSource) ListRuns(context.Context) ([]crawler.Run, error) { return nil, nil }

func (failingSource) ListOrigins(context.Context) ([]origin.Origin, error) { return nil, nil }

func (failingSource) ListApartments(context.Context) ([]crawler.Apartment, error) {
	return nil, errors.New("db down")
}

func TestBuildPropagatesErrors(t *testing.T) {
	t.Parallel()

	_, err := New(failingSource{}, fixedClock{generated}, nil).Build(context.Background())
	require.ErrorContains(t, err, "list apartments")
}
