package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPHandler invokes a trigger by POSTing the event envelope as JSON to
// a configured URL and decoding the JSON response as the handler's
// return value — the "external process endpoint" variant of design
// note §9.
type HTTPHandler struct {
	URL    string
	Client *http.Client
}

// NewHTTPHandler builds an HTTPHandler against url using http.DefaultClient
// if client is nil.
func NewHTTPHandler(url string, client *http.Client) *HTTPHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{URL: url, Client: client}
}

func (h *HTTPHandler) Invoke(ctx context.Context, event Event) (map[string]any, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("trigger: encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("trigger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trigger: invoke %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("trigger: %s responded %d", h.URL, resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("trigger: decode response from %s: %w", h.URL, err)
	}
	return out, nil
}

// ResolveHTTP builds a Runtime from a pool's LambdaConfig: a map from
// hook name (e.g. "PreSignUp") to an HTTP endpoint URL. Hook names not
// present in the AWS vocabulary are ignored rather than rejected, so a
// pool document from a slightly different emulator version still loads.
func ResolveHTTP(lambdaConfig map[string]string, timeout time.Duration, client *http.Client) *Runtime {
	bindings := make(map[Hook]Handler, len(lambdaConfig))
	for name, url := range lambdaConfig {
		if url == "" {
			continue
		}
		bindings[Hook(name)] = NewHTTPHandler(url, client)
	}
	return New(bindings, timeout)
}
