package session

import (
	"context"
	"testing"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSwitchAssetUnknownID(t *testing.T) {
	store := newFakeStore("EURUSD")
	sess := New(store, time.Hour)

	env, err := sess.SwitchAsset(context.Background(), int64Ptr(99))
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "subscribe", env.Action)
	assert.Nil(t, sess.CurrentAsset())
}

func TestSwitchAssetKnownID(t *testing.T) {
	store := newFakeStore("EURUSD", "GBPUSD")
	sess := New(store, time.Hour)

	env, err := sess.SwitchAsset(context.Background(), int64Ptr(2))
	require.NoError(t, err)
	assert.Nil(t, env)
	require.NotNil(t, sess.CurrentAsset())
	assert.Equal(t, "GBPUSD", sess.CurrentAsset().Name)
}

func TestSwitchAssetNilClears(t *testing.T) {
	store := newFakeStore("EURUSD")
	sess := New(store, time.Hour)
	_, _ = sess.SwitchAsset(context.Background(), int64Ptr(1))
	require.NotNil(t, sess.CurrentAsset())

	_, err := sess.SwitchAsset(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, sess.CurrentAsset())
}

func TestListAssets(t *testing.T) {
	store := newFakeStore("EURUSD", "GBPUSD")
	sess := New(store, time.Hour)

	env, err := sess.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "assets", env.Action)
}

func TestSubscribeStreamEmptyHistory(t *testing.T) {
	store := newFakeStore("EURUSD")
	sess := New(store, time.Hour)
	_, _ = sess.SwitchAsset(context.Background(), int64Ptr(1))

	var envelopes []rpc.Envelope
	err := sess.SubscribeStream(context.Background(), func(env rpc.Envelope) error {
		envelopes = append(envelopes, env)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "points", envelopes[0].Action)
}

func TestSubscribeStreamHistoryThenCancel(t *testing.T) {
	store := newFakeStore("EURUSD")
	sess := New(store, time.Hour)
	_, _ = sess.SwitchAsset(context.Background(), int64Ptr(1))
	_, _ = store.UpsertPoint(context.Background(), 1, time.Now().Unix()-5, 1.2345)

	ctx, cancel := context.WithCancel(context.Background())
	var envelopes []rpc.Envelope
	done := make(chan error, 1)
	go func() {
		done <- sess.SubscribeStream(ctx, func(env rpc.Envelope) error {
			envelopes = append(envelopes, env)
			if env.Action == "asset_history" {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SubscribeStream did not return after cancel")
	}

	require.Len(t, envelopes, 1)
	assert.Equal(t, "asset_history", envelopes[0].Action)
}
