package usecases

import (
	"context"
	"log/slog"

	"github.com/im-knots/ea-monorepo/internal/app/dto"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/infrastructure/metrics"
)

// Start launches a run of the saved agent and begins polling its status.
// Any previous poll is stopped and every node goes back to Idle before the
// job is submitted. Failures are also reported as the status message.
func (s *Session) Start(ctx context.Context) (string, error) {
	s.launchMu.Lock()
	defer s.launchMu.Unlock()

	s.mu.Lock()
	agentID := s.meta.ID
	s.mu.Unlock()

	if agentID == "" {
		s.setStatus(dto.StatusError, "save the agent before running it")
		return "", dto.ErrAgentNotSaved
	}
	if s.creator == "" {
		s.setStatus(dto.StatusError, "no creator for this session")
		return "", dto.ErrMissingCreator
	}

	s.poller.Stop()

	s.mu.Lock()
	s.runningJob = ""
	s.g.ResetExecutionState()
	s.mu.Unlock()

	jobName, err := s.ectx.Jobs.SubmitJob(s.withCredential(ctx), agentID, s.creator)
	if err != nil {
		s.logger.Error("job submission failed", slog.String("agent", agentID), slog.Any("error", err))
		s.setStatus(dto.StatusError, "failed to start agent job: %v", err)
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return jobName, nil
	}
	s.runningJob = jobName
	s.setStatusLocked(dto.StatusSuccess, "job %s started", jobName)
	s.mu.Unlock()

	s.logger.Info("job started", slog.String("agent", agentID), slog.String("job", jobName))
	s.poller.Start(jobName)
	s.publish(dto.Event{Type: dto.EventJobStarted, AgentID: agentID, JobName: jobName})
	return jobName, nil
}

// ApplyStatus merges polled node status into the graph. It reports false,
// changing nothing, when jobName is not the tracked job.
func (s *Session) ApplyStatus(jobName, jobStatus string, updates []dto.NodeUpdate) bool {
	s.mu.Lock()
	if s.closed || jobName == "" || jobName != s.runningJob {
		s.mu.Unlock()
		return false
	}
	applied := make([]dto.NodeUpdate, 0, len(updates))
	for _, u := range updates {
		if s.g.ApplyNodeStatus(u.Alias, graph.Status(u.Status), u.Output) > 0 {
			applied = append(applied, u)
		}
	}
	if dto.IsTerminal(jobStatus) {
		s.runningJob = ""
	}
	agentID := s.meta.ID
	s.mu.Unlock()

	metrics.AddNodeStatusUpdates(len(applied))
	for _, u := range applied {
		s.publish(dto.Event{
			Type:    dto.EventNodeStatus,
			AgentID: agentID,
			JobName: jobName,
			Alias:   u.Alias,
			Status:  u.Status,
		})
	}
	return true
}

// JobCompleted is called once the tracked job reaches its terminal state.
func (s *Session) JobCompleted(jobName string) {
	s.mu.Lock()
	agentID := s.meta.ID
	s.setStatusLocked(dto.StatusInfo, "job %s completed", jobName)
	s.mu.Unlock()

	s.publish(dto.Event{Type: dto.EventJobCompleted, AgentID: agentID, JobName: jobName, Status: dto.TerminalJobStatus})
}

// StopPolling cancels status polling and forgets the tracked job. Late
// results for it are discarded as stale.
func (s *Session) StopPolling() {
	s.poller.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningJob != "" {
		s.setStatusLocked(dto.StatusInfo, "stopped tracking job %s", s.runningJob)
		s.runningJob = ""
	}
}
