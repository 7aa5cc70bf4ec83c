package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Quicklotz/benchd/internal/errors"
)

// getJSON issues a GET, checks the status and decodes the body into out.
// The raw body is returned alongside so callers can persist it.
func getJSON(ctx context.Context, client *http.Client, url string, out any) ([]byte, error) {
	errFactory := errors.New()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errFactory.WithData(ErrBadResponse, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return body, errFactory.Wrap(ErrBadResponse, err)
		}
	}

	return body, nil
}
