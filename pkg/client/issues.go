package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

const (
	restPrefix  = "/rest/v1"
	issuesTable = restPrefix + "/issues"
)

// ListIssues fetches the issues owned by userID, newest first.
func (c *Client) ListIssues(ctx context.Context, userID uuid.UUID) ([]domain.Issue, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("user_id", "eq."+userID.String())
	params.Set("order", "created_at.desc")

	var issues []domain.Issue
	if err := c.get(ctx, issuesTable+"?"+params.Encode(), &issues); err != nil {
		return nil, fmt.Errorf("client.ListIssues: %w", err)
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}

// InsertIssue inserts a single issue row.
func (c *Client) InsertIssue(ctx context.Context, issue domain.NewIssue) error {
	if err := c.doRequest(ctx, http.MethodPost, issuesTable, c.bearer(), issue, nil); err != nil {
		return fmt.Errorf("client.InsertIssue: %w", err)
	}
	return nil
}

// UpdateIssueStatus sets the status of the issue with the given id.
func (c *Client) UpdateIssueStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	body := map[string]domain.Status{"status": status}
	if err := c.doRequest(ctx, http.MethodPatch, rowPath(id), c.bearer(), body, nil); err != nil {
		return fmt.Errorf("client.UpdateIssueStatus: %w", err)
	}
	return nil
}

// DeleteIssue removes the issue with the given id.
func (c *Client) DeleteIssue(ctx context.Context, id uuid.UUID) error {
	if err := c.doRequest(ctx, http.MethodDelete, rowPath(id), c.bearer(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteIssue: %w", err)
	}
	return nil
}

func rowPath(id uuid.UUID) string {
	return issuesTable + "?id=eq." + id.String()
}
