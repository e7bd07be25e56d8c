package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-cityfix/internal/docstore"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	svc := NewService(docstore.NewMemory(nil))
	clock := int64(1_700_000_000_000)
	svc.now = func() time.Time {
		clock++
		return time.UnixMilli(clock)
	}
	return svc
}

func TestSavedLocationCRUD(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	home, err := svc.Save(ctx, "u1", SavedLocation{Name: "Home", Address: "1 Main St", Lat: -6.2, Lng: 106.8})
	require.NoError(t, err)
	require.NotEmpty(t, home.ID)
	work, err := svc.Save(ctx, "u1", SavedLocation{Name: "Work", Lat: -6.1, Lng: 106.9})
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, work.ID, list[0].ID, "newest first")

	others, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)

	updated, err := svc.Update(ctx, "u1", home.ID, SavedLocation{Name: "Home sweet home"})
	require.NoError(t, err)
	assert.Equal(t, "Home sweet home", updated.Name)
	assert.Equal(t, "1 Main St", updated.Address)

	got, err := svc.Get(ctx, "u1", home.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	require.NoError(t, svc.Delete(ctx, "u1", home.ID))
	_, err = svc.Get(ctx, "u1", home.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, "u1", home.ID, SavedLocation{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavedLocationSearch(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.Save(ctx, "u1", SavedLocation{Name: "Near", Lat: -6.2, Lng: 106.8})
	_, _ = svc.Save(ctx, "u1", SavedLocation{Name: "Far", Lat: 1.35, Lng: 103.8})

	results, err := svc.Search(ctx, "u1", -6.21, 106.81, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Near", results[0].Name)
}

func TestWatchDeliversSnapshots(t *testing.T) {
	svc := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sizes []int
	stop, err := svc.Watch(ctx, "u1", func(locs []SavedLocation) {
		mu.Lock()
		sizes = append(sizes, len(locs))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	_, err = svc.Save(context.Background(), "u1", SavedLocation{Name: "Park", Lat: 1, Lng: 1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) >= 2 && sizes[0] == 0 && sizes[len(sizes)-1] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSaveStoreError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("users/u1/savedLocations", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	svc := NewService(docstore.NewPostgres(mock, nil))
	_, err = svc.Save(context.Background(), "u1", SavedLocation{Name: "Home"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
