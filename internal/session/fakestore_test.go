package session

import (
	"context"
	"sort"
	"sync"

	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore is an in-memory store.Store used to unit test Session
// without a live MongoDB instance.
type fakeStore struct {
	mu     sync.Mutex
	assets []model.Asset
	rates  map[int64][]model.Rate
	nextID int
}

func newFakeStore(assetNames ...string) *fakeStore {
	fs := &fakeStore{rates: make(map[int64][]model.Rate)}
	for i, name := range assetNames {
		fs.assets = append(fs.assets, model.Asset{ID: int64(i + 1), Name: name})
	}
	return fs
}

func (fs *fakeStore) InitializeAssets(ctx context.Context, names []string) error { return nil }

func (fs *fakeStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]model.Asset(nil), fs.assets...), nil
}

func (fs *fakeStore) FindAssetByID(ctx context.Context, id int64) (*model.Asset, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, a := range fs.assets {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (fs *fakeStore) UpsertPoint(ctx context.Context, assetID int64, t int64, value float64) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range fs.rates[assetID] {
		if r.Time == t {
			return false, nil
		}
	}
	fs.nextID++
	fs.rates[assetID] = append(fs.rates[assetID], model.Rate{
		ID:      primitive.NewObjectID(),
		AssetID: assetID,
		Time:    t,
		Value:   value,
	})
	return true, nil
}

func (fs *fakeStore) LatestPoint(ctx context.Context, assetID int64) (*model.Rate, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rates := fs.rates[assetID]
	if len(rates) == 0 {
		return nil, nil
	}
	latest := rates[0]
	for _, r := range rates[1:] {
		if r.Time > latest.Time {
			latest = r
		}
	}
	return &latest, nil
}

func (fs *fakeStore) History(ctx context.Context, assetID int64, sinceTime int64) ([]model.Rate, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []model.Rate
	for _, r := range fs.rates[assetID] {
		if r.Time >= sinceTime {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	return out, nil
}

func (fs *fakeStore) Close(ctx context.Context) error { return nil }
