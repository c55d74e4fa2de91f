package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const uploadPath = "api/v1/history"

// RepositoryStore publishes records to a remote history repository.
type RepositoryStore struct {
	requestURL *url.URL
	token      string
	client     *http.Client
}

// NewRepositoryStore returns a store posting to <serverURL>/api/v1/history.
// A non empty token is sent as a bearer token.
func NewRepositoryStore(serverURL, token string, client *http.Client) (*RepositoryStore, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Path != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://some-url.com`")
	}
	parsedURL.Path = uploadPath

	if client == nil {
		client = &http.Client{}
	}
	return &RepositoryStore{
		requestURL: parsedURL,
		token:      token,
		client:     client,
	}, nil
}

func (c *RepositoryStore) Save(ctx context.Context, rec Record) (Record, error) {
	rec = prepare(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encoding history record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return Record{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	createResp, err := c.decodeUploadResponse(resp)
	if err != nil {
		return Record{}, err
	}
	slog.DebugContext(ctx, "history record uploaded successfully.",
		slog.String("id", rec.ID),
		slog.String("remote_id", createResp.ID))
	return rec, nil
}

type createResponse struct {
	ID string `json:"id"`
}

func (c *RepositoryStore) decodeUploadResponse(resp *http.Response) (createResponse, error) {
	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return createResponse{}, fmt.Errorf("failed to parse response content type header: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		if contentType != "application/json" {
			return createResponse{}, fmt.Errorf("expected `application/json` content type, got: %s", contentType)
		}
		var cr createResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return createResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		if cr.ID == "" {
			return createResponse{}, errors.New("received unexpected body")
		}
		return cr, nil

	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnsupportedMediaType:
		if contentType != "application/problem+json" {
			return createResponse{}, fmt.Errorf("expected `application/problem+json` content type, got: %s", contentType)
		}
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return createResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		return createResponse{}, fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return createResponse{}, err
	}
	return createResponse{}, fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
