package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
)

// graphClient issues authenticated Graph requests for a single call.
type graphClient struct {
	base string
	http *http.Client
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends the request and returns the response for 2xx statuses. Any other
// status is turned into a *common.UpstreamError carrying the Graph message.
func (g *graphClient) do(ctx context.Context, method, pathOrURL string, body io.Reader, contentType string) (*http.Response, error) {
	url := pathOrURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = g.base + pathOrURL
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, providers.TransportError(Name, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := http.StatusText(resp.StatusCode)
	var ge graphErrorBody
	if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
		msg = ge.Error.Message
		if ge.Error.Code != "" {
			msg = ge.Error.Code + ": " + msg
		}
	}

	return nil, &common.UpstreamError{Provider: Name, Status: resp.StatusCode, Message: msg}
}

func (g *graphClient) getJSON(ctx context.Context, path string, out any) error {
	return g.sendJSON(ctx, http.MethodGet, path, nil, "", out)
}

func (g *graphClient) sendJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := g.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &common.UpstreamError{Provider: Name, Status: resp.StatusCode, Message: "malformed response: " + err.Error(), Err: err}
	}
	return nil
}

func (g *graphClient) patchJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return g.sendJSON(ctx, http.MethodPatch, path, bytes.NewReader(b), "application/json", out)
}
