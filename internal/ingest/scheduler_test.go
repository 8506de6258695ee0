package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/fetcher"
	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	assets    []model.Asset
	upserts   []model.Rate
	newlyHit  map[int64]bool
}

func (fs *fakeStore) InitializeAssets(ctx context.Context, names []string) error { return nil }
func (fs *fakeStore) ListAssets(ctx context.Context) ([]model.Asset, error)      { return fs.assets, nil }
func (fs *fakeStore) FindAssetByID(ctx context.Context, id int64) (*model.Asset, error) {
	return nil, nil
}
func (fs *fakeStore) UpsertPoint(ctx context.Context, assetID, t int64, v float64) (bool, error) {
	fs.upserts = append(fs.upserts, model.Rate{AssetID: assetID, Time: t, Value: v})
	if fs.newlyHit == nil {
		return true, nil
	}
	return fs.newlyHit[assetID], nil
}
func (fs *fakeStore) LatestPoint(ctx context.Context, assetID int64) (*model.Rate, error) {
	return nil, nil
}
func (fs *fakeStore) History(ctx context.Context, assetID int64, since int64) ([]model.Rate, error) {
	return nil, nil
}
func (fs *fakeStore) Close(ctx context.Context) error { return nil }

func TestSchedulerTickUpsertsMatchedAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null({"Rates":[{"Symbol":"EURUSD","Bid":1.10,"Ask":1.12},{"Symbol":"UNKNOWN","Bid":9,"Ask":9}]});`))
	}))
	defer srv.Close()

	store := &fakeStore{assets: []model.Asset{{ID: 1, Name: "EURUSD"}, {ID: 2, Name: "GBPUSD"}}}
	s := &Scheduler{
		Store:   store,
		Fetcher: fetcher.New(srv.URL),
		Workers: 1,
		Logger:  zerolog.Nop(),
	}

	require.NoError(t, s.tick(context.Background()))
	require.Len(t, store.upserts, 1)
	assert.Equal(t, int64(1), store.upserts[0].AssetID)
	assert.InDelta(t, 1.11, store.upserts[0].Value, 1e-9)
}

func TestSchedulerTickNoAssets(t *testing.T) {
	s := &Scheduler{
		Store:   &fakeStore{},
		Fetcher: fetcher.New("http://unused.invalid"),
		Workers: 1,
		Logger:  zerolog.Nop(),
	}
	require.NoError(t, s.tick(context.Background()))
}

func TestSchedulerWorkerStaggerDoesNotBlockForever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null([]);`))
	}))
	defer srv.Close()

	s := &Scheduler{
		Store:    &fakeStore{assets: []model.Asset{{ID: 1, Name: "EURUSD"}}},
		Fetcher:  fetcher.New(srv.URL),
		Workers:  2,
		Interval: 20 * time.Millisecond,
		Logger:   zerolog.Nop(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
