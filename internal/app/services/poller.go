package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// ErrInvalidOutput is returned by ParseOutput for output that is not a JSON
// object.
var ErrInvalidOutput = errors.New("node output is not a JSON object")

// StatusFetcher reads a user's job records.
type StatusFetcher interface {
	GetUser(ctx context.Context, userID string) (*dto.UserRecord, error)
}

// StatusSink receives reconciled job status.
//
// ApplyStatus returns false when jobName is no longer the tracked job; the
// poller then discards the result and stops. Implementations must not call
// Start or Stop on the poller from inside either method.
type StatusSink interface {
	ApplyStatus(jobName, jobStatus string, updates []dto.NodeUpdate) bool
	JobCompleted(jobName string)
}

// PollerConfig controls polling cadence.
type PollerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

// Poller tracks one remote job at a time and feeds its per-node status to a
// sink until the job completes.
// PRINCIPLES:
// - Single flight: the next fetch is scheduled only after the previous one returns
// - A new Start always stops the previous loop first
type Poller struct {
	fetcher StatusFetcher
	sink    StatusSink
	userID  string
	cfg     PollerConfig
	logger  *slog.Logger

	mu      sync.Mutex
	jobName string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates an idle poller for userID's jobs.
func NewPoller(fetcher StatusFetcher, userID string, sink StatusSink, cfg PollerConfig, log *slog.Logger) *Poller {
	if log == nil {
		log = logger.Named("poller")
	}
	return &Poller{
		fetcher: fetcher,
		sink:    sink,
		userID:  userID,
		cfg:     cfg.withDefaults(),
		logger:  log,
	}
}

// Start begins polling jobName. One fetch happens immediately.
func (p *Poller) Start(jobName string) {
	p.mu.Lock()
	for p.cancel != nil {
		cancel, done := p.cancel, p.done
		p.mu.Unlock()
		cancel()
		<-done
		p.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.jobName = jobName
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	metrics.AddPollers(1)
	go p.run(ctx, jobName, done)
}

// Stop cancels the active loop, if any, and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State reports whether a loop is running.
func (p *Poller) State() dto.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return dto.PollIdle
	}
	return dto.PollPolling
}

// JobName returns the job being polled, or "" when idle.
func (p *Poller) JobName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobName
}

// Done returns a channel closed when the current loop exits. When idle the
// channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

func (p *Poller) run(ctx context.Context, jobName string, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.jobName = ""
			p.cancel = nil
			p.done = nil
		}
		p.mu.Unlock()
		metrics.AddPollers(-1)
		close(done)
	}()

	log := p.logger.With(slog.String("job", jobName))
	log.Info("polling started", slog.Duration("interval", p.cfg.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("polling stopped")
			return
		case <-timer.C:
		}

		switch p.poll(ctx, log, jobName) {
		case pollCompleted:
			log.Info("job completed")
			metrics.IncJobsCompleted()
			p.sink.JobCompleted(jobName)
			return
		case pollStale:
			log.Debug("job no longer tracked, discarding result")
			metrics.IncStaleResults()
			return
		}
		timer.Reset(p.cfg.Interval)
	}
}

type pollOutcome int

const (
	pollContinue pollOutcome = iota
	pollCompleted
	pollStale
)

func (p *Poller) poll(ctx context.Context, log *slog.Logger, jobName string) pollOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	user, err := p.fetcher.GetUser(fetchCtx, p.userID)
	cancel()

	if ctx.Err() != nil {
		return pollContinue
	}
	if err != nil {
		log.Warn("status fetch failed", slog.Any("error", err))
		return pollContinue
	}

	job, ok := user.FindJob(jobName)
	if !ok {
		log.Debug("job not yet listed")
		return pollContinue
	}

	updates := make([]dto.NodeUpdate, 0, len(job.Nodes))
	for _, ns := range job.Nodes {
		out, err := ParseOutput(ns.Output)
		if err != nil {
			log.Warn("unparseable node output", slog.String("alias", ns.Alias), slog.Any("error", err))
			metrics.IncOutputParseErrors()
			out = nil
		}
		updates = append(updates, dto.NodeUpdate{Alias: ns.Alias, Status: ns.Status, Output: out})
	}

	if !p.sink.ApplyStatus(jobName, job.Status, updates) {
		return pollStale
	}
	if dto.IsTerminal(job.Status) {
		return pollCompleted
	}
	return pollContinue
}

// ParseOutput decodes a node's reported output. The output is normally a
// JSON object encoded as a string; an inline object is accepted as well.
// Empty output yields an empty map.
func ParseOutput(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		raw = bytes.TrimSpace([]byte(text))
		if len(raw) == 0 {
			return map[string]any{}, nil
		}
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
