// Package dispatch turns a claimed task into an outbound HTTP call against
// one of the dispatcher's named downstream services and normalizes the
// response into a result payload.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/relaytasks/dispatchd/internal/task"
)

// BaseURLResolver returns the base URL configured for a logical service
// name, and whether that service is recognized.
type BaseURLResolver func(service string) (string, bool)

// Dispatcher issues the outbound HTTP call for a claimed task.
type Dispatcher struct {
	client  *http.Client
	resolve BaseURLResolver
}

// New builds a Dispatcher. client's Timeout should already be set by the
// caller (the default contract is 10 seconds per call, see internal/config).
func New(client *http.Client, resolve BaseURLResolver) *Dispatcher {
	return &Dispatcher{client: client, resolve: resolve}
}

// Dispatch issues the downstream HTTP call described by t and returns the
// normalized result payload on success. On a non-2xx downstream response
// it returns *HTTPStatusError; other failures (DNS, connect, timeout,
// TLS) are returned as opaque errors.
func (d *Dispatcher) Dispatch(ctx context.Context, t *task.Task) ([]byte, error) {
	base, ok := d.resolve(string(t.Service))
	if !ok || base == "" {
		return nil, ErrUnknownService(t.Service)
	}

	target := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(t.Route, "/")

	req, err := d.buildRequest(ctx, target, t)
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return normalizeResult(t.Method, resp.StatusCode, resp.Header, body)
}

func (d *Dispatcher) buildRequest(ctx context.Context, target string, t *task.Task) (*http.Request, error) {
	if t.Method.UsesQueryParams() {
		query, err := paramsToQuery(t.Params)
		if err != nil {
			return nil, err
		}
		if query != "" {
			target += "?" + query
		}
		return http.NewRequestWithContext(ctx, string(t.Method), target, nil)
	}

	body := t.Params
	if len(body) == 0 {
		body = []byte("{}")
	}
	req, err := http.NewRequestWithContext(ctx, string(t.Method), target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// paramsToQuery flattens a JSON object into a URL query string. String
// values are used as-is, null becomes an empty value, and every other
// value (numbers, booleans, nested objects/arrays) is written as its JSON
// text.
func paramsToQuery(params json.RawMessage) (string, error) {
	if len(params) == 0 {
		return "", nil
	}

	var fields map[string]any
	if err := json.Unmarshal(params, &fields); err != nil {
		return "", fmt.Errorf("params must be a JSON object for query-string methods: %w", err)
	}

	values := url.Values{}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			values.Set(k, val)
		case nil:
			values.Set(k, "")
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				return "", fmt.Errorf("encode query param %q: %w", k, err)
			}
			values.Set(k, strings.Trim(string(encoded), `"`))
		}
	}
	return values.Encode(), nil
}

// normalizeResult implements the §4.3 result-normalization rules.
func normalizeResult(method task.Method, statusCode int, header http.Header, body []byte) ([]byte, error) {
	switch method {
	case task.MethodHead:
		return json.Marshal(map[string]any{
			"status_code": statusCode,
			"headers":     flattenHeader(header),
		})
	case task.MethodOptions:
		return json.Marshal(map[string]any{
			"status_code": statusCode,
			"headers":     flattenHeader(header),
			"text":        string(body),
		})
	}

	if json.Valid(body) {
		return body, nil
	}

	return json.Marshal(map[string]any{
		"status_code": statusCode,
		"text":        string(body),
	})
}

func flattenHeader(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for k, v := range header {
		flat[k] = strings.Join(v, ", ")
	}
	return flat
}
