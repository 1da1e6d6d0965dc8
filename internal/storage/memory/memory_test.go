package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/booking"
)

func TestDB_SaveAssignsIDsAndListsNewestFirst(t *testing.T) {
	db := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &booking.CompletedBooking{Name: "a", CreatedAt: base}
	second := &booking.CompletedBooking{Name: "b", CreatedAt: base.Add(time.Minute)}
	third := &booking.CompletedBooking{Name: "c", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.Save(ctx, first))
	require.NoError(t, db.Save(ctx, second))
	require.NoError(t, db.Save(ctx, third))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, int64(3), third.ID)

	list, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestDB_ConcurrentSaveUniqueIDs(t *testing.T) {
	db := New()
	var wg sync.WaitGroup
	ids := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := &booking.CompletedBooking{}
			assert.NoError(t, db.Save(context.Background(), b))
			ids <- b.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}
