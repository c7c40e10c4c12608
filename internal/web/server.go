// Package web serves the HTTP status and move API and the websocket gamepad.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

const maxBodyBytes = 4096

// Robocar is the part of the robocar system the web surface drives.
type Robocar interface {
	HandleButton(button types.ButtonCode, pressed bool) error
	HandleRemoteMove(cmd types.MoveCommand) (string, error)
	Status() types.Status
}

type response struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	ID      string        `json:"id,omitempty"`
	Status  *types.Status `json:"status,omitempty"`
}

type moveRequest struct {
	Direction  string `json:"direction"`
	DurationMS int64  `json:"duration_ms"`
}

// Server is the HTTP front end of the robocar.
type Server struct {
	logger *logger.Logger
	robot  Robocar
	addr   string

	httpServer *http.Server
	listener   net.Listener

	// ctx bounds websocket sessions, which outlive http.Server.Shutdown once hijacked
	ctx     context.Context
	cancel  context.CancelFunc
	clients sync.WaitGroup
}

func NewServer(addr string, robot Robocar, l *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger: l,
		robot:  robot,
		addr:   addr,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the routed handler with request logging and permissive CORS.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Use(s.logRequests)
	mux.HandleFunc(pat.Get("/status"), s.handleStatus)
	mux.HandleFunc(pat.Post("/move"), s.handleMove)
	mux.HandleFunc(pat.Get("/gamepad"), s.handleGamepad)
	return cors.AllowAll().Handler(mux)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server failed: %v", err)
		}
	}()
	s.logger.Infof("HTTP API listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting requests and ends gamepad sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnf("Timeout waiting for gamepad sessions to close")
	}

	s.logger.Infof("HTTP API stopped")
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Infof("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.robot.Status()
	s.writeJSON(w, response{Code: http.StatusOK, Message: "OK", Status: &status})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	duration, err := types.MoveDuration(req.DurationMS)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd, err := types.ParseMoveCommand(req.Direction, duration)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.robot.HandleRemoteMove(cmd)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, response{Code: http.StatusOK, Message: "OK", ID: id})
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.logger.Warnf("Request failed with %d: %s", code, message)
	s.writeJSON(w, response{Code: code, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warnf("Failed to write response: %v", err)
	}
}
