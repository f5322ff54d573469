package twenty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"spartan-crm/prometheus"
)

const (
	defaultTimeout = 15 * time.Second
	graphqlPath    = "/graphql"
)

// Config holds the per-tenant connection settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to one tenant's remote CRM over GraphQL
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient builds a client for cfg. A nil logger falls back to the global one.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.L()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	base = strings.TrimSuffix(base, graphqlPath)

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   rc,
		logger: log.With(zap.String("remote", base)),
	}
}

// HTTPClient exposes the underlying resty client, used by tests to intercept transport
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// execute posts op and decodes its data member into out
func (c *Client) execute(ctx context.Context, op *operation, vars map[string]any, out any) (err error) {
	start := time.Now()
	defer func() { prometheus.ObserveRemoteCall(op.name, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(gqlRequest{Query: op.query, Variables: vars}).
		Post(graphqlPath)
	if err != nil {
		c.logger.Error("Remote request failed", zap.String("operation", op.name), zap.Error(err))
		return fmt.Errorf("twenty %s: %w", op.name, err)
	}
	return c.decode(op, resp, out)
}

// executeUpload sends op as a GraphQL multipart request with one file bound to variables.file
func (c *Client) executeUpload(ctx context.Context, op *operation, vars map[string]any, fileName, contentType string, content []byte, out any) (err error) {
	start := time.Now()
	defer func() { prometheus.ObserveRemoteCall(op.name, start, err) }()

	withFile := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		withFile[k] = v
	}
	withFile["file"] = nil

	operations, err := json.Marshal(gqlRequest{Query: op.query, Variables: withFile})
	if err != nil {
		return fmt.Errorf("twenty %s: encode operations: %w", op.name, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"operations": string(operations),
			"map":        `{"0":["variables.file"]}`,
		}).
		SetMultipartField("0", fileName, contentType, bytes.NewReader(content)).
		Post(graphqlPath)
	if err != nil {
		c.logger.Error("Remote upload failed", zap.String("operation", op.name), zap.Error(err))
		return fmt.Errorf("twenty %s: %w", op.name, err)
	}
	return c.decode(op, resp, out)
}

func (c *Client) decode(op *operation, resp *resty.Response, out any) error {
	var body gqlResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		e := &Error{Operation: op.name, StatusCode: resp.StatusCode()}
		if decodeErr == nil && len(body.Errors) > 0 {
			e.Errors = body.Errors
		} else {
			e.Body = strings.TrimSpace(string(resp.Body()))
		}
		c.logger.Warn("Remote returned error status",
			zap.String("operation", op.name),
			zap.Int("status", resp.StatusCode()))
		return e
	}

	if decodeErr != nil {
		return fmt.Errorf("twenty %s: decode response: %w", op.name, decodeErr)
	}
	if len(body.Errors) > 0 {
		c.logger.Warn("Remote returned GraphQL errors",
			zap.String("operation", op.name),
			zap.String("message", body.Errors[0].Message))
		return &Error{Operation: op.name, StatusCode: resp.StatusCode(), Errors: body.Errors}
	}
	if out == nil || len(body.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("twenty %s: decode data: %w", op.name, err)
	}
	return nil
}

// connection is the relay-style list shape the remote returns
type connection[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

func (c connection[T]) nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}
