// Package jobapi submits agent runs to the job API.
package jobapi

import (
	"context"
	"fmt"

	"github.com/im-knots/ea-monorepo/internal/adapters/rest"
	"github.com/im-knots/ea-monorepo/internal/app/dto"
)

type Client struct {
	rest *rest.Client
}

func New(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// SubmitJob starts a run of agentID on behalf of userID and returns the job
// name used to track it.
func (c *Client) SubmitJob(ctx context.Context, agentID, userID string) (string, error) {
	var created dto.JobCreated
	req := dto.JobRequest{AgentID: agentID, UserID: userID}
	if err := c.rest.Post(ctx, "/jobs", req, &created); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if created.JobName == "" {
		return "", fmt.Errorf("submit job: %w: response carried no job_name", dto.ErrRemote)
	}
	return created.JobName, nil
}
