package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowctl/flowctl/internal/connector"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/pkg/httpclient"
)

// httpConnector issues one request per call against a fixed method/URL,
// sending a non-nil input as a JSON body. It is deliberately narrower than
// the teacher's operation-based HTTP connector: the spec's contract has no
// notion of named operations, so one source maps to one request shape.
type httpConnector struct {
	client  *http.Client
	method  string
	url     string
	headers map[string]string
}

// NewHTTP constructs the "http" builtin. Required configuration: "url".
// Optional: "method" (default GET), "headers" (map[string]string),
// "timeout" (duration string).
func NewHTTP(configuration map[string]any) (connector.Connector, error) {
	url, _ := configuration["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http connector requires 'url' in configuration")
	}
	method, _ := configuration["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = "flowctl-http-connector/1.0"
	if t, ok := configuration["timeout"].(string); ok {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		cfg.Timeout = d
	}
	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if raw, ok := configuration["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	return &httpConnector{client: client, method: method, url: url, headers: headers}, nil
}

func (c *httpConnector) Call(ctx context.Context, input any) (flow.ConnectorResult, error) {
	var body io.Reader
	if input != nil {
		encoded, err := json.Marshal(input)
		if err != nil {
			return errorResult(fmt.Errorf("encoding request body: %w", err)), nil
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return errorResult(err), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errorResult(err), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(err), nil
	}

	var data any
	if jsonErr := json.Unmarshal(respBody, &data); jsonErr != nil {
		data = string(respBody)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	var notes []string
	if !success {
		notes = []string{fmt.Sprintf("unexpected status code %d", resp.StatusCode)}
	}
	meta := map[string]any{"status_code": resp.StatusCode}
	return result(success, resp.StatusCode, data, notes, meta), nil
}
