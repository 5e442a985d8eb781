package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eipdev/eipdev-go/pkg/config"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

var errNoPoint = errors.New("no connection point for role")

// simulator plays a scanner: it opens one connection and keeps it alive,
// writing a rolling counter pattern into exclusive owner outputs.
type simulator struct {
	host   *stack.Host
	req    stack.OpenRequest
	period time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSimulator(host *stack.Host, cfg config.SimulationConfig, logger *slog.Logger) (*simulator, error) {
	role, err := connpoint.ParseRole(cfg.Role)
	if err != nil {
		return nil, err
	}
	s := &simulator{host: host, period: cfg.Period, logger: logger}
	if s.period <= 0 {
		s.period = 100 * time.Millisecond
	}
	for _, p := range host.Points() {
		if p.Role == role {
			s.req = stack.OpenRequest{Role: role, OutputID: p.OutputID, InputID: p.InputID, ConfigID: p.ConfigID}
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errNoPoint, role)
}

// Role returns the simulated connection role.
func (s *simulator) Role() connpoint.Role {
	return s.req.Role
}

// Running reports whether the simulation goroutine is active.
func (s *simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start opens the connection and begins delivering output data.
func (s *simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.logger.Info("[SIM] simulation started", "role", s.req.Role.String(), "period", s.period)
}

// Stop closes the simulated connection and waits for the goroutine.
func (s *simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("[SIM] simulation stopped")
}

func (s *simulator) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var (
		id   uuid.UUID
		size int
		err  error
	)
	if doErr := s.host.Do(ctx, func() {
		if id, err = s.host.OpenConnection(s.req); err == nil {
			out, _ := s.host.Assembly(s.req.OutputID)
			size = len(out)
		}
	}); doErr != nil {
		return
	}
	if err != nil {
		s.logger.Error("[SIM] open failed", "role", s.req.Role.String(), "error", err)
		s.mu.Lock()
		if s.done == done {
			s.cancel()
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		return
	}
	s.logger.Info("[SIM] connection opened", "id", id.String(), "output", s.req.OutputID, "input", s.req.InputID)

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.host.Do(closeCtx, func() { _ = s.host.CloseConnection(id) })
	}()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	data := make([]byte, size)
	var seq byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			for i := range data {
				data[i] = seq + byte(i)
			}
			if doErr := s.host.Do(ctx, func() { err = s.host.DeliverOutput(id, data, true) }); doErr != nil {
				return
			}
			if err != nil {
				s.logger.Warn("[SIM] output rejected", "error", err)
				return
			}
		}
	}
}
