package memory

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/apartment-crawler/internal/crawler"
	"github.com/JakeFAU/apartment-crawler/internal/origin"
)

func TestStoreRawRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	for _, u := range []string{"a", "b", "a"} {
		_, err := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: u, Content: "<html>" + u + "</html>"})
		require.NoError(t, err)
	}

	all, err := store.ListRaw(ctx, crawler.RawQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})

	byURL, err := store.ListRaw(ctx, crawler.RawQuery{URL: "a"})
	require.NoError(t, err)
	require.Len(t, byURL, 2)

	limited, err := store.ListRaw(ctx, crawler.RawQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "b", limited[1].URL)
}

func TestStoreDetailsReplaceAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	id, err := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: "a"})
	require.NoError(t, err)

	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{RawID: id, Headline: "first"}))
	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{RawID: id, Headline: "second"}))
	details, err := store.ListDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "second", details[0].Headline)

	require.ErrorIs(t, store.InsertDetails(ctx, crawler.ExtractedRecord{RawID: 99}), ErrUnknownRawRecord)
	require.ErrorIs(t, store.InsertAddress(ctx, crawler.Address{RawID: 99}), ErrUnknownRawRecord)

	require.NoError(t, store.DeleteDetails(ctx))
	details, err = store.ListDetails(ctx)
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestStoreListApartmentsJoins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	complete, _ := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: "complete"})
	noAddress, _ := store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "quebec", URL: "no-address"})
	_, _ = store.InsertRaw(ctx, crawler.RawRecord{OriginCode: "montreal", URL: "no-details"})

	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{
		RawID:    complete,
		Headline: "Grand 4 ½",
		Price:    mo.Some[int64](95000),
		NumRooms: mo.Some(4.5),
	}))
	require.NoError(t, store.InsertDetails(ctx, crawler.ExtractedRecord{RawID: noAddress, Headline: "x"}))
	require.NoError(t, store.InsertAddress(ctx, crawler.Address{RawID: complete, Latitude: 46.8, Longitude: -71.2, FormattedAddress: "Québec"}))

	apartments, err := store.ListApartments(ctx)
	require.NoError(t, err)
	require.Len(t, apartments, 1)

	a := apartments[0]
	assert.Equal(t, "complete", a.URL)
	assert.Equal(t, "quebec", a.Origin)
	require.NotNil(t, a.Price)
	assert.Equal(t, int64(95000), *a.Price)
	require.NotNil(t, a.NumRooms)
	assert.Equal(t, 4.5, *a.NumRooms)
	assert.Nil(t, a.Description)
	assert.Nil(t, a.DatePosted)
	assert.Nil(t, a.NumBathrooms)
}

func TestStoreRunsAndOrigins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	later := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-24 * time.Hour)

	require.NoError(t, store.RecordRun(ctx, crawler.Run{ID: "late", StartedAt: later, Origins: []origin.Origin{origin.Sherbrooke}}))
	require.NoError(t, store.RecordRun(ctx, crawler.Run{ID: "early", StartedAt: earlier, Origins: []origin.Origin{origin.Quebec, origin.Sherbrooke}}))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "early", runs[0].ID)
	assert.Nil(t, runs[0].Origins)

	origins, err := store.ListOrigins(ctx)
	require.NoError(t, err)
	assert.Equal(t, []origin.Origin{origin.Quebec, origin.Sherbrooke}, origins)
}
