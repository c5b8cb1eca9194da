package connectors

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

type JiraConnector struct {
	config JiraConfig
	client *resty.Client
}

func NewJira(config JiraConfig) *JiraConnector {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetBasicAuth(config.Email, config.ApiToken)
	return &JiraConnector{config: config, client: client}
}

func (c *JiraConnector) Configured() bool {
	return c.config.Configured()
}

type jiraCreateIssueResponse struct {
	Id  string `json:"id"`
	Key string `json:"key"`
}

func (c *JiraConnector) CreateTicket(summary, description, priority string) (string, error) {
	if priority == "" {
		priority = "Medium"
	}

	issue := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": c.config.ProjectKey},
			"issuetype":   map[string]string{"name": "Task"},
			"summary":     summary,
			"description": description,
			"priority":    map[string]string{"name": priority},
		},
	}

	var body jiraCreateIssueResponse
	res, err := c.client.R().
		SetBody(issue).
		SetResult(&body).
		Post(c.config.BaseUrl + "/rest/api/2/issue")
	if err != nil {
		slog.Error("jira create issue request failed", "error", err)
		return "", fmt.Errorf("error creating jira ticket: %w", err)
	}
	if res.IsError() {
		slog.Error("jira create issue rejected", "status", res.StatusCode(), "body", res.String())
		return "", fmt.Errorf("jira rejected ticket creation with status %v", res.StatusCode())
	}

	return body.Key, nil
}
