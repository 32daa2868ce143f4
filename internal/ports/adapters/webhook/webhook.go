package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/forPelevin/hlscene/internal/types"
)

// Payload is the body POSTed once a job has finished.
type Payload struct {
	JobID    string         `json:"job_id"`
	Metadata types.Metadata `json:"metadata"`
	Files    []string       `json:"files"`
}

type Adapter struct {
	url    string
	client *resty.Client
}

func New(url string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &Adapter{url: url, client: c}
}

func (a *Adapter) Publish(ctx context.Context, jobID string, md types.Metadata, files []string) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(Payload{JobID: jobID, Metadata: md, Files: files}).
		Post(a.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
