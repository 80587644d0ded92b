// Package restclient implements remote.Store against the `wordsync serve` REST API.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/metrics"
)

// Client talks to /api/users/{user_id}/... on the server.
// It sets no request timeout of its own: callers bound calls through ctx.
type Client struct {
	client *resty.Client
}

// New creates a client for baseURL.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "wordsync/1.0")

	return &Client{client: c}
}

type collectionRequest struct {
	Word string `json:"word"`
}

func userPath(userID string, parts ...string) string {
	path := "/api/users/" + url.PathEscape(userID)
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path
}

func (c *Client) ListCollections(ctx context.Context, userID string) ([]entities.CollectionItem, error) {
	items := []entities.CollectionItem{}
	if err := c.do(ctx, http.MethodGet, userPath(userID, "collections"), nil, &items); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return items, nil
}

func (c *Client) InsertCollection(ctx context.Context, userID, word string) (*entities.CollectionItem, error) {
	var item entities.CollectionItem
	if err := c.do(ctx, http.MethodPost, userPath(userID, "collections"), collectionRequest{Word: word}, &item); err != nil {
		return nil, fmt.Errorf("insert collection %q: %w", word, err)
	}
	return &item, nil
}

func (c *Client) DeleteCollection(ctx context.Context, userID, word string) error {
	if err := c.do(ctx, http.MethodDelete, userPath(userID, "collections", word), nil, nil); err != nil {
		return fmt.Errorf("delete collection %q: %w", word, err)
	}
	return nil
}

func (c *Client) ListProgress(ctx context.Context, userID string) ([]entities.ProgressRecord, error) {
	records := []entities.ProgressRecord{}
	if err := c.do(ctx, http.MethodGet, userPath(userID, "progress"), nil, &records); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return records, nil
}

func (c *Client) UpsertProgress(ctx context.Context, userID, word string, update entities.ProgressUpdate) (*entities.ProgressRecord, error) {
	var record entities.ProgressRecord
	if err := c.do(ctx, http.MethodPut, userPath(userID, "progress", word), update, &record); err != nil {
		return nil, fmt.Errorf("upsert progress %q: %w", word, err)
	}
	return &record, nil
}

// do sends one request and decodes a 2xx body into out. Transport errors and
// non-2xx statuses come back as apperrors.ClassifiedError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(method, metrics.OutcomeError).Inc()
		return apperrors.Remote(err)
	}
	if !resp.IsSuccess() {
		metrics.RemoteRequestsTotal.WithLabelValues(method, metrics.OutcomeError).Inc()
		return apperrors.FromStatus(resp.StatusCode(), resp.String())
	}
	metrics.RemoteRequestsTotal.WithLabelValues(method, metrics.OutcomeOK).Inc()

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return apperrors.Remote(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
	}
	return nil
}
