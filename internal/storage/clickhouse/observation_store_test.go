package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealtplum/watch-heat/internal/domain"
)

func testObservation(brand, ref, date string) domain.Observation {
	return domain.Observation{
		Date:           day(date),
		Brand:          brand,
		Reference:      ref,
		MedianPrice:    ptr(28500.0),
		ListingsActive: ptr(int64(12)),
		DOMMedian:      ptr(45.0),
		EbayActivity:   ptr(130.0),
	}
}

func TestObservationStore_InsertBulkAndGetByEntity(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, nil))

	observations := []domain.Observation{
		testObservation("Rolex", "116500LN", "2026-01-02"),
		testObservation("Rolex", "116500LN", "2026-01-01"),
		testObservation("Omega", "310.30.42.50.01.001", "2026-01-01"),
	}
	require.NoError(t, store.InsertBulk(ctx, observations))

	got, err := store.GetByEntity(ctx, domain.EntityKey{Brand: "Rolex", Reference: "116500LN"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by date ASC.
	assert.True(t, got[0].Date.Equal(day("2026-01-01")))
	assert.True(t, got[1].Date.Equal(day("2026-01-02")))
	require.NotNil(t, got[0].MedianPrice)
	assert.InDelta(t, 28500.0, *got[0].MedianPrice, 0.0001)
	require.NotNil(t, got[0].ListingsActive)
	assert.Equal(t, int64(12), *got[0].ListingsActive)
}

func TestObservationStore_NilColumnsRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	o := domain.Observation{
		Date:      day("2026-01-01"),
		Brand:     "Rolex",
		Reference: "116500LN",
		// Every signal missing: a scrape that found the model but no data.
	}
	require.NoError(t, store.InsertBulk(ctx, []domain.Observation{o}))

	got, err := store.GetByEntity(ctx, domain.EntityKey{Brand: "Rolex", Reference: "116500LN"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].MedianPrice)
	assert.Nil(t, got[0].ListingsActive)
	assert.Nil(t, got[0].DOMMedian)
	assert.Nil(t, got[0].EbayActivity)
}

func TestObservationStore_SameDayReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	first := testObservation("Rolex", "116500LN", "2026-01-01")
	require.NoError(t, store.InsertBulk(ctx, []domain.Observation{first}))

	// Distinct insert timestamps keep the replacing version order unambiguous.
	time.Sleep(10 * time.Millisecond)

	second := testObservation("Rolex", "116500LN", "2026-01-01")
	second.MedianPrice = ptr(29000.0)
	second.ListingsActive = nil
	require.NoError(t, store.InsertBulk(ctx, []domain.Observation{second}))

	got, err := store.GetByEntity(ctx, domain.EntityKey{Brand: "Rolex", Reference: "116500LN"})
	require.NoError(t, err)
	require.Len(t, got, 1, "same-day rows must collapse to the latest write")
	require.NotNil(t, got[0].MedianPrice)
	assert.InDelta(t, 29000.0, *got[0].MedianPrice, 0.0001)
	assert.Nil(t, got[0].ListingsActive)
}

func TestObservationStore_GetSince(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.Observation{
		testObservation("Rolex", "116500LN", "2026-01-01"),
		testObservation("Rolex", "116500LN", "2026-01-05"),
		testObservation("Omega", "310.30.42.50.01.001", "2026-01-06"),
	}))

	got, err := store.GetSince(ctx, day("2026-01-05"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by (brand, reference, date).
	assert.Equal(t, "Omega", got[0].Brand)
	assert.Equal(t, "Rolex", got[1].Brand)
}

func TestObservationStore_GetAllOrdered(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewObservationStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.Observation{
		testObservation("Rolex", "126610LN", "2026-01-01"),
		testObservation("Rolex", "116500LN", "2026-01-02"),
		testObservation("Rolex", "116500LN", "2026-01-01"),
	}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "116500LN", got[0].Reference)
	assert.True(t, got[0].Date.Equal(day("2026-01-01")))
	assert.True(t, got[1].Date.Equal(day("2026-01-02")))
	assert.Equal(t, "126610LN", got[2].Reference)
}
