// Package loki provides a client to push alarm notifications to Grafana Loki.
package loki

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// jobLabel is the job label of every stream pushed by the copilot.
const jobLabel = "skywalking-copilot"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are invalid in Loki label values we emit.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:.]`)

// labelFields maps notification JSON members to stream labels. High-cardinality members (session,
// event id) stay in the log line.
var labelFields = map[string]string{
	"eventType": "event_type",
	"alarmType": "alarm_type",
	"service":   "service",
	"alarmId":   "alarm_id",
}

// Client pushes log lines to Loki.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for the Loki instance at baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("loki: base URL is empty")
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}, nil
}

// PushEventJSON reads the alarm notification JSON (Kafka message value), extracts timestamp and
// labels, and pushes the raw document as the log line. Unparseable payloads are pushed with the
// current time and no extra labels.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	if gjson.ValidBytes(rawJSON) {
		doc := gjson.ParseBytes(rawJSON)
		for field, label := range labelFields {
			if v := doc.Get(field).String(); v != "" {
				labels[label] = v
			}
		}
		if created := doc.Get("createdAt").String(); created != "" {
			if t, err := time.Parse(time.RFC3339Nano, created); err == nil && !t.IsZero() {
				ts = t
			}
		}
	}
	return c.PushEvent(ctx, ts, string(rawJSON), labels)
}

// PushEvent sends a single log line to Loki. labels are added to the stream next to job.
// Returns an error if the HTTP request fails or Loki returns non-2xx.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = jobLabel
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/loki/api/v1/push")
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("loki: push returned %s", resp.Status())
	}
	return nil
}
