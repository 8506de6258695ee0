// Package session implements the per-connection client session
// service: asset subscription state, history fetch and the live poll
// loop.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/model"
	"github.com/gencurrent/async-socket-exchange-rate/internal/rpc"
	"github.com/gencurrent/async-socket-exchange-rate/internal/store"
)

const fallbackPollInterval = 200 * time.Millisecond

// Session holds the per-connection subscription state. The
// currentAsset slot is written only by the dispatcher goroutine
// (SwitchAsset) and read only by the streaming goroutine
// (SubscribeStream); atomic.Pointer gives the acquire-release ordering
// that requires without a mutex.
type Session struct {
	store         store.Store
	historyWindow time.Duration
	currentAsset  atomic.Pointer[model.Asset]
}

// New builds a Session bound to store s, with subscribe_stream's
// history query looking back historyWindow from "now".
func New(s store.Store, historyWindow time.Duration) *Session {
	return &Session{store: s, historyWindow: historyWindow}
}

// CurrentAsset returns the asset currently subscribed to, or nil.
func (sess *Session) CurrentAsset() *model.Asset {
	return sess.currentAsset.Load()
}

// SwitchAsset implements switch_asset. A nil id clears the
// subscription. A non-nil id that doesn't resolve to a known asset
// yields a non-nil *rpc.Envelope carrying the error to send back to
// the client; session state is left unchanged in that case. A nil,nil
// return means the switch succeeded.
func (sess *Session) SwitchAsset(ctx context.Context, id *int64) (*rpc.Envelope, error) {
	if id == nil {
		sess.currentAsset.Store(nil)
		return nil, nil
	}

	asset, err := sess.store.FindAssetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		env := rpc.SingleError("subscribe", "Asset not found")
		return &env, nil
	}

	sess.currentAsset.Store(asset)
	return nil, nil
}

// ListAssets implements list_assets.
func (sess *Session) ListAssets(ctx context.Context) (rpc.Envelope, error) {
	assets, err := sess.store.ListAssets(ctx)
	if err != nil {
		return rpc.Envelope{}, err
	}
	return rpc.NewAssetsEnvelope(assets), nil
}

// SubscribeStream implements subscribe_stream. It calls emit for every
// envelope in the sequence described by the spec: one asset_history
// envelope (or one points-error envelope on empty history), followed
// by live point envelopes until CurrentAsset reads nil or ctx is
// canceled. It never blocks anywhere but the poll sleep, which is
// itself interruptible via ctx.
func (sess *Session) SubscribeStream(ctx context.Context, emit func(rpc.Envelope) error) error {
	asset := sess.currentAsset.Load()
	if asset == nil {
		return nil
	}

	since := time.Now().Add(-sess.historyWindow).Unix()
	history, err := sess.store.History(ctx, asset.ID, since)
	if err != nil {
		return err
	}

	if len(history) == 0 {
		return emit(rpc.Envelope{
			Action:  "points",
			Message: rpc.ErrorsPayload{Errors: []rpc.ErrorDetail{{Msg: "No points to return"}}},
		})
	}

	points := make([]rpc.Point, len(history))
	for i, r := range history {
		points[i] = rpc.NewPoint(asset.Name, r)
	}
	if err := emit(rpc.NewAssetHistoryEnvelope(points)); err != nil {
		return err
	}

	// history is newest-first; the anchor is always the newest point
	// (see SPEC_FULL.md design notes on the ambiguous "last seen" anchor).
	lastSeen := history[0]

	for {
		asset = sess.currentAsset.Load()
		if asset == nil {
			return nil
		}

		latest, err := sess.store.LatestPoint(ctx, asset.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Identity() != lastSeen.Identity() {
			lastSeen = *latest
			if err := emit(rpc.NewPointEnvelope(rpc.NewPoint(asset.Name, lastSeen))); err != nil {
				return err
			}
		}

		delay := time.Duration(lastSeen.Time+1-time.Now().Unix()) * time.Second
		if delay <= 0 {
			delay = fallbackPollInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
