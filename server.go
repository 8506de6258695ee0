package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/dispatch"
	"github.com/gencurrent/async-socket-exchange-rate/internal/fetcher"
	"github.com/gencurrent/async-socket-exchange-rate/internal/ingest"
	"github.com/gencurrent/async-socket-exchange-rate/internal/monitoring"
	"github.com/gencurrent/async-socket-exchange-rate/internal/session"
	"github.com/gencurrent/async-socket-exchange-rate/internal/store"
	"github.com/gencurrent/async-socket-exchange-rate/internal/wsconn"
	"github.com/gobwas/ws"
	"github.com/rs/zerolog"
)

// Server owns the HTTP listener, the ingestion scheduler and the
// shared document store. Each upgraded connection gets its own
// Session and Dispatcher; there is no cross-connection fan-out.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	store  store.Store

	httpServer *http.Server
	scheduler  *ingest.Scheduler
	resources  *monitoring.ResourceSampler

	startedAt   time.Time
	activeConns int64
}

// NewServer wires the store, fetcher and ingestion scheduler together
// and builds the HTTP mux. It does not start listening; call Run.
func NewServer(cfg Config, logger zerolog.Logger, st store.Store) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		startedAt: time.Now(),
		scheduler: &ingest.Scheduler{
			Store:    st,
			Fetcher:  fetcher.New(cfg.UpstreamURL),
			Workers:  cfg.IngestWorkers,
			Interval: cfg.IngestInterval,
			Logger:   logger.With().Str("component", "ingest").Logger(),
		},
		resources: monitoring.NewResourceSampler(15*time.Second, logger.With().Str("component", "resources").Logger()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", monitoring.Handler())

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Run starts the ingestion scheduler and the HTTP listener, and blocks
// until ctx is canceled. Either half dying propagates to the other.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- s.scheduler.Run(ctx)
	}()

	go s.resources.Run(ctx)

	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		s.shutdown()
		return err
	}
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"active_conns":     atomic.LoadInt64(&s.activeConns),
		"ingestion_assets": s.cfg.Assets(),
		"resources":        s.resources.Sample(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	atomic.AddInt64(&s.activeConns, 1)
	monitoring.ConnectionsTotal.Inc()
	monitoring.ConnectionsActive.Inc()
	defer func() {
		atomic.AddInt64(&s.activeConns, -1)
		monitoring.ConnectionsActive.Dec()
	}()

	conn := wsconn.New(netConn, s.logger)
	conn.Start()
	defer conn.Disconnect()

	sess := session.New(s.store, s.cfg.HistoryWindow)
	disp := dispatch.New(conn, sess, conn.Logger)

	ctx := r.Context()
	for {
		cmd, err := conn.ReceiveCommand(ctx)
		if err != nil {
			conn.Logger.Debug().Err(err).Msg("connection closed")
			return
		}
		disp.Handle(ctx, cmd)
	}
}
