// Package api exposes the status and control HTTP surface: a read-only
// scheduler snapshot, the alarm configuration, the sleep timer, and the
// Prometheus metrics endpoint. The scheduler itself is never touched
// directly; writes go through the shared config store and are picked up on
// the next wake-check.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wakespot/wakespot/internal/alarm"
	"github.com/wakespot/wakespot/internal/config"
	"github.com/wakespot/wakespot/internal/logger"
	"github.com/wakespot/wakespot/internal/sleeptimer"
)

// SchedulerView is the read-only slice of the scheduler the API serves.
type SchedulerView interface {
	Snapshot() alarm.Snapshot
}

// SleepTimer is the slice of the sleep timer the API drives.
type SleepTimer interface {
	Start(device string, duration, fadeOut time.Duration)
	Cancel() bool
	Snapshot() sleeptimer.Snapshot
}

// Server is the HTTP status/control server.
type Server struct {
	http      *http.Server
	scheduler SchedulerView
	timer     SleepTimer
	store     *config.Store
	logger    *logger.Logger
}

// NewServer builds the server and its routes.
func NewServer(listen string, scheduler SchedulerView, timer SleepTimer, store *config.Store, log *logger.Logger) *Server {
	s := &Server{
		scheduler: scheduler,
		timer:     timer,
		store:     store,
		logger:    log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/alarm", s.handleGetAlarm)
		r.Put("/alarm", s.handlePutAlarm)
		r.Post("/sleeptimer", s.handleStartSleepTimer)
		r.Delete("/sleeptimer", s.handleCancelSleepTimer)
	})

	s.http = &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			logger.Field{Key: "addr", Value: s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	Alarm      alarm.Snapshot      `json:"alarm"`
	SleepTimer sleeptimer.Snapshot `json:"sleep_timer"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Alarm:      s.scheduler.Snapshot(),
		SleepTimer: s.timer.Snapshot(),
	})
}

type alarmPayload struct {
	Enabled     *bool     `json:"enabled,omitempty"`
	Time        *string   `json:"time,omitempty"`
	Weekdays    *[]string `json:"weekdays,omitempty"`
	Timezone    *string   `json:"timezone,omitempty"`
	Volume      *int      `json:"volume,omitempty"`
	DeviceName  *string   `json:"device_name,omitempty"`
	PlaylistURI *string   `json:"playlist_uri,omitempty"`
	FadeInSec   *int      `json:"fade_in_seconds,omitempty"`
	Shuffle     *bool     `json:"shuffle,omitempty"`
}

func (s *Server) handleGetAlarm(w http.ResponseWriter, _ *http.Request) {
	cfg := s.store.Config()
	s.writeJSON(w, http.StatusOK, cfg.Alarm)
}

func (s *Server) handlePutAlarm(w http.ResponseWriter, r *http.Request) {
	var payload alarmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.store.Update(func(cfg *config.Config) error {
		applyAlarmPayload(&cfg.Alarm, payload)
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	cfg := s.store.Config()
	s.writeJSON(w, http.StatusOK, cfg.Alarm)
}

func applyAlarmPayload(a *config.AlarmConfig, p alarmPayload) {
	if p.Enabled != nil {
		a.Enabled = *p.Enabled
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Weekdays != nil {
		a.Weekdays = *p.Weekdays
	}
	if p.Timezone != nil {
		a.Timezone = *p.Timezone
	}
	if p.Volume != nil {
		a.Volume = *p.Volume
	}
	if p.DeviceName != nil {
		a.DeviceName = *p.DeviceName
	}
	if p.PlaylistURI != nil {
		a.PlaylistURI = *p.PlaylistURI
	}
	if p.FadeInSec != nil {
		a.FadeInSec = *p.FadeInSec
	}
	if p.Shuffle != nil {
		a.Shuffle = *p.Shuffle
	}
}

type sleepTimerPayload struct {
	Minutes        int `json:"minutes"`
	FadeOutSeconds int `json:"fade_out_seconds"`
}

func (s *Server) handleStartSleepTimer(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Config()
	payload := sleepTimerPayload{
		Minutes:        cfg.SleepTimer.DefaultMinutes,
		FadeOutSeconds: cfg.SleepTimer.FadeOutSec,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if payload.Minutes <= 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("minutes must be positive"))
		return
	}

	s.timer.Start(cfg.Alarm.DeviceName,
		time.Duration(payload.Minutes)*time.Minute,
		time.Duration(payload.FadeOutSeconds)*time.Second)
	s.writeJSON(w, http.StatusAccepted, s.timer.Snapshot())
}

func (s *Server) handleCancelSleepTimer(w http.ResponseWriter, _ *http.Request) {
	if !s.timer.Cancel() {
		s.writeError(w, http.StatusNotFound, errors.New("no active sleep timer"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.timer.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
