package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"segcheck/internal/server"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// FetchStats reads GET /api/stats.
func FetchStats(ctx context.Context, addr string) (map[string]int, error) {
	var stats map[string]int
	if err := getJSON(ctx, addr, "/api/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// FetchStatus reads GET /api/status.
func FetchStatus(ctx context.Context, addr string) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := getJSON(ctx, addr, "/api/status", &status)
	return status, err
}

// UnlockAll calls POST /api/unlock_all. token may be empty.
func UnlockAll(ctx context.Context, addr, user, token string) (server.UnlockAllResponse, error) {
	u, err := endpoint(addr, "/api/unlock_all")
	if err != nil {
		return server.UnlockAllResponse{}, err
	}
	body, _ := json.Marshal(map[string]string{"user_name": user})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(string(body)))
	if err != nil {
		return server.UnlockAllResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	var out server.UnlockAllResponse
	err = doJSON(req, &out)
	return out, err
}

func getJSON(ctx context.Context, addr, path string, v any) error {
	u, err := endpoint(addr, path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return doJSON(req, v)
}

func doJSON(req *http.Request, v any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", req.Method, req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
