package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/pkg/logger"
)

type scriptedFetcher struct {
	mu        sync.Mutex
	responses []fetchResult
	calls     int
	delay     time.Duration
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

type fetchResult struct {
	user *dto.UserRecord
	err  error
}

func (f *scriptedFetcher) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxFlight.Load()
		if n <= m || f.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	r := f.responses[i]
	return r.user, r.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingSink struct {
	mu        sync.Mutex
	tracked   string
	applied   []appliedStatus
	completed []string
}

type appliedStatus struct {
	job     string
	status  string
	updates []dto.NodeUpdate
}

func (s *recordingSink) ApplyStatus(jobName, jobStatus string, updates []dto.NodeUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jobName != s.tracked {
		return false
	}
	s.applied = append(s.applied, appliedStatus{job: jobName, status: jobStatus, updates: updates})
	return true
}

func (s *recordingSink) JobCompleted(jobName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, jobName)
}

func (s *recordingSink) track(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked = job
}

func (s *recordingSink) Applied() []appliedStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appliedStatus(nil), s.applied...)
}

func (s *recordingSink) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...)
}

func userWith(jobs ...dto.Job) fetchResult {
	return fetchResult{user: &dto.UserRecord{ID: "user-1", Jobs: jobs}}
}

func outputString(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	inner, err := json.Marshal(v)
	require.NoError(t, err)
	outer, err := json.Marshal(string(inner))
	require.NoError(t, err)
	return outer
}

func fastConfig() PollerConfig {
	return PollerConfig{Interval: 5 * time.Millisecond, FetchTimeout: time.Second}
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_PollsUntilCompleted(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		userWith(dto.Job{JobName: "job-1", Status: "executing", Nodes: []dto.NodeStatus{
			{Alias: "a", Status: "executing"},
		}}),
		userWith(dto.Job{JobName: "job-1", Status: "Completed", Nodes: []dto.NodeStatus{
			{Alias: "a", Status: "Completed", Output: outputString(t, map[string]any{"a.input": "hi"})},
		}}),
	}}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	waitDone(t, p)

	applied := sink.Applied()
	require.Len(t, applied, 2)
	assert.Equal(t, "executing", applied[0].status)
	assert.Equal(t, map[string]any{}, applied[0].updates[0].Output)
	assert.Equal(t, map[string]any{"a.input": "hi"}, applied[1].updates[0].Output)
	assert.Equal(t, []string{"job-1"}, sink.Completed())

	assert.Equal(t, dto.PollIdle, p.State())
	assert.Empty(t, p.JobName())
	assert.Equal(t, 2, fetcher.Calls())
}

func TestPoller_LowercaseCompletedIsTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		userWith(dto.Job{JobName: "job-1", Status: "completed"}),
	}}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	waitDone(t, p)

	assert.Equal(t, []string{"job-1"}, sink.Completed())
}

func TestPoller_FetchErrorsKeepPolling(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		{err: errors.New("connection refused")},
		userWith(),
		userWith(dto.Job{JobName: "job-1", Status: "Completed"}),
	}}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	waitDone(t, p)

	assert.Equal(t, 3, fetcher.Calls())
	assert.Len(t, sink.Applied(), 1, "job missing from the record is not applied")
	assert.Equal(t, []string{"job-1"}, sink.Completed())
}

func TestPoller_BadOutputLeavesOutputUnchanged(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		userWith(dto.Job{JobName: "job-1", Status: "Completed", Nodes: []dto.NodeStatus{
			{Alias: "a", Status: "failed", Output: json.RawMessage(`"{not json"`)},
			{Alias: "b", Status: "Completed", Output: json.RawMessage(`{"b.out":1}`)},
		}}),
	}}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	waitDone(t, p)

	applied := sink.Applied()
	require.Len(t, applied, 1)
	require.Len(t, applied[0].updates, 2)
	assert.Equal(t, "failed", applied[0].updates[0].Status)
	assert.Nil(t, applied[0].updates[0].Output)
	assert.Equal(t, map[string]any{"b.out": float64(1)}, applied[0].updates[1].Output)
}

func TestPoller_StaleResultStopsLoop(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		userWith(dto.Job{JobName: "job-1", Status: "executing"}),
	}}
	sink := &recordingSink{}
	sink.track("job-2")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	waitDone(t, p)

	assert.Empty(t, sink.Applied())
	assert.Empty(t, sink.Completed())
	assert.Equal(t, 1, fetcher.Calls())
}

func TestPoller_StartReplacesPreviousLoop(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResult{
		userWith(
			dto.Job{JobName: "job-1", Status: "executing"},
			dto.Job{JobName: "job-2", Status: "executing"},
		),
	}}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, fastConfig(), logger.Discard())
	p.Start("job-1")
	require.Eventually(t, func() bool { return len(sink.Applied()) > 0 }, time.Second, time.Millisecond)

	sink.track("job-2")
	p.Start("job-2")
	assert.Equal(t, "job-2", p.JobName())
	assert.Equal(t, dto.PollPolling, p.State())

	require.Eventually(t, func() bool {
		applied := sink.Applied()
		return applied[len(applied)-1].job == "job-2"
	}, time.Second, time.Millisecond)

	p.Stop()
	assert.Equal(t, dto.PollIdle, p.State())
	for _, a := range sink.Applied() {
		assert.Contains(t, []string{"job-1", "job-2"}, a.job)
	}
}

func TestPoller_SingleFlight(t *testing.T) {
	fetcher := &scriptedFetcher{
		delay: 15 * time.Millisecond,
		responses: []fetchResult{
			userWith(dto.Job{JobName: "job-1", Status: "executing"}),
		},
	}
	sink := &recordingSink{}
	sink.track("job-1")

	p := NewPoller(fetcher, "user-1", sink, PollerConfig{Interval: time.Millisecond, FetchTimeout: time.Second}, logger.Discard())
	p.Start("job-1")
	require.Eventually(t, func() bool { return fetcher.Calls() >= 4 }, 2*time.Second, time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(1), fetcher.maxFlight.Load())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := NewPoller(&scriptedFetcher{}, "user-1", &recordingSink{}, PollerConfig{}, logger.Discard())
	p.Stop()
	p.Stop()
	assert.Equal(t, dto.PollIdle, p.State())
	waitDone(t, p)
	assert.Equal(t, DefaultPollInterval, p.cfg.Interval)
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{"absent", ``, map[string]any{}, false},
		{"null", `null`, map[string]any{}, false},
		{"empty string", `""`, map[string]any{}, false},
		{"encoded object", `"{\"x.input\":\"hi\"}"`, map[string]any{"x.input": "hi"}, false},
		{"inline object", `{"k":[1,2]}`, map[string]any{"k": []any{float64(1), float64(2)}}, false},
		{"encoded garbage", `"{oops"`, nil, true},
		{"encoded array", `"[1,2]"`, nil, true},
		{"number", `42`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutput(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
