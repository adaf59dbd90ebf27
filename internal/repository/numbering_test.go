package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"backend/internal/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestNumberSourceIsSequential(t *testing.T) {
	db := newTestDB(t)
	src := NewSequenceNumberSource(db)
	shopID := uuid.New()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		number, err := src.Next(ctx, shopID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-%06d", i), number)
	}
}

func TestNumberSourceIsPerShop(t *testing.T) {
	db := newTestDB(t)
	src := NewSequenceNumberSource(db)
	ctx := context.Background()

	shopA := uuid.New()
	shopB := uuid.New()

	first, err := src.Next(ctx, shopA)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", first)

	second, err := src.Next(ctx, shopA)
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second)

	// Shop B's counter is untouched by shop A's allocations.
	other, err := src.Next(ctx, shopB)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", other)
}

func TestNumberSourceDistinctUnderConcurrentAllocation(t *testing.T) {
	db := newTestDB(t)
	src := NewSequenceNumberSource(db)
	shopID := uuid.New()
	ctx := context.Background()

	const workers = 20
	numbers := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := src.Next(ctx, shopID)
			if err != nil {
				errs <- err
				return
			}
			numbers <- number
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[string]bool, workers)
	for number := range numbers {
		require.False(t, seen[number], "number %s allocated twice", number)
		seen[number] = true
	}
	assert.Len(t, seen, workers)
}

func TestNumberSourceNeverRepeats(t *testing.T) {
	db := newTestDB(t)
	src := NewSequenceNumberSource(db)
	shopID := uuid.New()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number, err := src.Next(ctx, shopID)
		require.NoError(t, err)
		require.False(t, seen[number], "number %s allocated twice", number)
		seen[number] = true
	}
}
