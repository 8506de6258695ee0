// Package store defines the persistence contract between the ingestion
// scheduler and the RPC subscription path, and a MongoDB-backed
// implementation of it.
package store

import (
	"context"

	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
)

// Store is the document-store adapter described by the spec's data
// model section. Implementations must make UpsertPoint idempotent
// under concurrent callers racing on the same (assetID, time) pair.
type Store interface {
	// InitializeAssets idempotently ensures one Asset per name, with
	// id = position+1. Returns rpcerr.ErrAlreadyPopulated (wrapped) when
	// a name already exists with a conflicting id, or when called a
	// second time with the same list; callers may ignore that error.
	InitializeAssets(ctx context.Context, names []string) error

	// ListAssets returns all assets in id-ascending order.
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// FindAssetByID returns the asset or (nil, nil) if it doesn't exist.
	FindAssetByID(ctx context.Context, id int64) (*model.Asset, error)

	// UpsertPoint inserts (assetID, time, value) if no document with
	// that (asset, time) pair exists yet; otherwise it is a no-op. A
	// racing duplicate must never be returned as an error. The bool
	// result reports whether this call performed the insert, so
	// callers can log how many points were newly created per tick.
	UpsertPoint(ctx context.Context, assetID int64, time int64, value float64) (bool, error)

	// LatestPoint returns the point with the greatest time for the
	// asset, or (nil, nil) if the asset has no points.
	LatestPoint(ctx context.Context, assetID int64) (*model.Rate, error)

	// History returns every point with time >= sinceTime for the asset,
	// newest first.
	History(ctx context.Context, assetID int64, sinceTime int64) ([]model.Rate, error)

	// Close releases the underlying connection pool.
	Close(ctx context.Context) error
}
