// Package usermanager reads user records, which carry per-job execution
// status.
package usermanager

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

// GetUser fetches userID's record.
func (c *Client) GetUser(ctx context.Context, userID string) (*dto.UserRecord, error) {
	var user dto.UserRecord
	if err := c.rest.Get(ctx, "/users/"+userID, &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}
