package skywalking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Transport sends a GraphQL document and returns the response data tree.
type Transport interface {
	Query(ctx context.Context, document string) (gjson.Result, error)
	Close() error
}

// HTTPTransport posts GraphQL documents to {baseURL}/graphql.
type HTTPTransport struct {
	client *resty.Client
}

// NewHTTPTransport returns a transport for the SkyWalking OAP/UI at baseURL (e.g. http://localhost:8080).
// timeout bounds each request; zero means no client-side timeout.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &HTTPTransport{client: c}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

// Query posts document and returns the "data" member of the response.
// Top-level GraphQL errors are returned wrapped in ErrBackend.
func (t *HTTPTransport) Query(ctx context.Context, document string) (gjson.Result, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: document}).
		Post("/graphql")
	if err != nil {
		return gjson.Result{}, fmt.Errorf("skywalking: post query: %w", err)
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("%w: status %s", ErrBackend, resp.Status())
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON body", ErrMalformedResponse)
	}
	res := gjson.ParseBytes(body)
	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrBackend, strings.Join(msgs, "; "))
	}
	data := res.Get("data")
	if !data.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	return data, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (t *HTTPTransport) Close() error {
	t.client.GetClient().CloseIdleConnections()
	return nil
}
