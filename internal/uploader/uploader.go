// Package uploader is the client side of the list API: it pushes candidate
// endpoint lists produced by a prober and reads the stored list back.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ipkv/internal/shared"
)

type Uploader struct {
	Cfg    *shared.UploaderConfig
	Client *http.Client
}

func New(cfg *shared.UploaderConfig) (*Uploader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Uploader{
		Cfg:    cfg,
		Client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

func (u *Uploader) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	target := strings.TrimRight(u.Cfg.WorkerURL, "/") + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", u.Cfg.WorkerAPIKey)
	return req, nil
}

// do sends req and decodes the envelope. Non-2xx statuses and
// success=false both come back as errors carrying the server's message.
func (u *Uploader) do(req *http.Request) (*shared.Envelope, error) {
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env shared.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if resp.StatusCode/100 != 2 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	return &env, nil
}

// Upload sends ips to the configured key. action is "replace" or "append";
// empty uses the configured action.
func (u *Uploader) Upload(ctx context.Context, ips []string, action string) (*shared.UpdateData, string, error) {
	if len(ips) == 0 {
		return nil, "", errors.New("no entries to upload")
	}
	if action == "" {
		action = u.Cfg.Action
	}
	body, err := json.Marshal(shared.UpdateRequest{IPs: ips, Action: action, Key: u.Cfg.Key})
	if err != nil {
		return nil, "", err
	}

	req, err := u.newRequest(ctx, http.MethodPost, "/api/ips", body)
	if err != nil {
		return nil, "", err
	}
	env, err := u.do(req)
	if err != nil {
		return nil, "", err
	}

	var data shared.UpdateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, "", fmt.Errorf("decode update response: %w", err)
	}
	return &data, env.Message, nil
}

// FetchList returns the entries stored under the configured key.
func (u *Uploader) FetchList(ctx context.Context) ([]string, error) {
	q := url.Values{"format": {"json"}, "key": {u.Cfg.Key}}
	req, err := u.newRequest(ctx, http.MethodGet, "/api/ips?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	env, err := u.do(req)
	if err != nil {
		return nil, err
	}

	var data shared.ListData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return data.IPs, nil
}

func (u *Uploader) Stats(ctx context.Context) (*shared.StatsData, error) {
	req, err := u.newRequest(ctx, http.MethodGet, "/api/stats", nil)
	if err != nil {
		return nil, err
	}
	env, err := u.do(req)
	if err != nil {
		return nil, err
	}

	var data shared.StatsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}
	return &data, nil
}

// Health reports whether the server's store probe succeeded.
func (u *Uploader) Health(ctx context.Context) (*shared.HealthResponse, error) {
	req, err := u.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var hr shared.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &hr, fmt.Errorf("health check failed: status %d: %s", resp.StatusCode, hr.Error)
	}
	return &hr, nil
}
