package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cosmwasm-lightclient/relayer/relay-node/config"
)

// AdminServer serves health, status and metrics of a Relayer over HTTP.
type AdminServer struct {
	log      log.Logger
	relayer  *Relayer
	metrics  http.Handler
	listener net.Listener
	srv      *http.Server
}

func NewAdminServer(log log.Logger, addr string, r *Relayer, metrics http.Handler) (*AdminServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &AdminServer{
		log:      log,
		relayer:  r,
		metrics:  metrics,
		listener: listener,
	}
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Addr is the address the server listens on.
func (s *AdminServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *AdminServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", s.metrics)
	return r
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *AdminServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Admin server listening", "addr", s.listener.Addr())
		errCh <- s.srv.Serve(s.listener)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// A relayer is unhealthy when no cycle succeeded for two intervals plus the
// retry delay.
func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	sched := s.relayer.Schedule()
	if !s.relayer.Healthy(2*sched.Interval + sched.RetryDelay) {
		http.Error(w, "no successful cycle recently", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	Schedule  scheduleJSON `json:"schedule"`
	LastCycle *CycleStatus `json:"last_cycle,omitempty"`
}

type scheduleJSON struct {
	Lookback   string `json:"lookback"`
	Interval   string `json:"interval"`
	RetryDelay string `json:"retry_delay"`
}

func newScheduleJSON(s config.Schedule) scheduleJSON {
	return scheduleJSON{
		Lookback:   s.Lookback.String(),
		Interval:   s.Interval.String(),
		RetryDelay: s.RetryDelay.String(),
	}
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{Schedule: newScheduleJSON(s.relayer.Schedule())}
	if last, ok := s.relayer.LastCycle(); ok {
		res.LastCycle = &last
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.log.Warn("Failed to write status", "err", err)
	}
}
