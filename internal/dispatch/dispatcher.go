// Package dispatch implements the per-command routing described in
// the spec's dispatcher component: action routing and subscription
// task lifecycle, including the re-subscribe-without-restart
// optimization.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/gencurrent/async-socket-exchange-rate/internal/monitoring"
	"github.com/gencurrent/async-socket-exchange-rate/internal/rpc"
	"github.com/gencurrent/async-socket-exchange-rate/internal/session"
	"github.com/gencurrent/async-socket-exchange-rate/internal/wsconn"
	"github.com/rs/zerolog"
)

// Dispatcher routes decoded commands to the client session service and
// manages the lifetime of the background streaming task.
type Dispatcher struct {
	conn    *wsconn.Connection
	session *session.Session
	logger  zerolog.Logger
}

// New builds a Dispatcher for one connection's session.
func New(conn *wsconn.Connection, sess *session.Session, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{conn: conn, session: sess, logger: logger}
}

// Handle processes one received command end to end, per the state
// machine in SPEC_FULL.md §4.7. Only an assets command or a successful
// subscribe is recorded as the connection's latest command; an unknown
// action or a rejected subscribe leaves the previous one in place.
func (d *Dispatcher) Handle(ctx context.Context, cmd *rpc.Command) {
	previous := d.conn.LatestCommand()
	wasStreaming := previous != nil && previous.Action == "subscribe"

	monitoring.CommandsReceived.WithLabelValues(cmd.Action).Inc()

	switch cmd.Action {
	case "assets":
		if wasStreaming {
			// Tearing down the asset binding lets the running
			// streaming task observe current_asset == nil on its next
			// loop iteration and exit on its own.
			if _, err := d.session.SwitchAsset(ctx, nil); err != nil {
				d.logger.Error().Err(err).Msg("failed to clear subscription on assets command")
			}
		}
		env, err := d.session.ListAssets(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to list assets")
			break
		}
		_ = d.conn.Send(env)

	case "subscribe":
		if !d.handleSubscribe(ctx, cmd, wasStreaming) {
			return
		}

	default:
		monitoring.CommandErrors.WithLabelValues("unknown_action").Inc()
		_ = d.conn.Send(rpc.SingleError(cmd.Action, "Unknown action"))
		return
	}

	d.conn.SetLatestCommand(cmd)
}

// handleSubscribe reports whether the subscribe succeeded.
func (d *Dispatcher) handleSubscribe(ctx context.Context, cmd *rpc.Command, wasStreaming bool) bool {
	var body rpc.SubscribeCommand
	if err := json.Unmarshal(cmd.Message, &body); err != nil || body.AssetID == nil {
		_ = d.conn.Send(rpc.SingleError("subscribe", "`assetId` must be an integer"))
		return false
	}

	errEnv, err := d.session.SwitchAsset(ctx, body.AssetID)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to switch asset")
		return false
	}
	if errEnv != nil {
		_ = d.conn.Send(*errEnv)
		return false
	}

	if wasStreaming {
		// The already-running streaming task will pick up the new
		// current_asset on its next loop iteration; no new task, and
		// no repeated asset_history preamble.
		return true
	}

	d.conn.AddTask(ctx, func(taskCtx context.Context) {
		err := d.session.SubscribeStream(taskCtx, func(env rpc.Envelope) error {
			if env.Action == "point" {
				monitoring.PointsEmitted.Inc()
			}
			return d.conn.Send(env)
		})
		if err != nil {
			d.logger.Error().Err(err).Msg("subscription stream ended with error")
		}
	})
	return true
}
