package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// postJSON sends a JSON payload and decodes a JSON response. Non-2xx
// responses and transport failures are reported as *CallError so the retry
// classification is uniform across providers.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return callErrorf(provider, 0, "encoding request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return callErrorf(provider, 0, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return callErrorf(provider, 0, "%v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return callErrorf(provider, 0, "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return callErrorf(provider, resp.StatusCode, "%s", truncate(string(data), 512))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return callErrorf(provider, 0, "decoding response: %v", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
