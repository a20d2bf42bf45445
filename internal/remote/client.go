package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"flocksync/internal/domain"
)

// Client is the single choke point for all backend interaction: typed
// query/mutation, auth session, file upload and the change-feed subscription.
// It holds no state beyond the HTTP client and the current session; no call
// retries automatically and every error propagates to the caller.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	log       *zap.Logger

	mu      sync.RWMutex
	token   string
	profile *domain.Profile
}

func New(baseURL string, log *zap.Logger) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "FlockSync-Client/1.0",
		log:       log,
	}
}

// SignIn exchanges credentials for a bearer token and the caller's profile.
// The token is attached to every subsequent request.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var session domain.Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", nil, body, &session, "signin", ""); err != nil {
		return nil, err
	}
	if !session.Profile.Role.Valid() {
		return nil, &Error{Kind: KindQuery, Op: "signin", Message: fmt.Sprintf("unknown role %q", session.Profile.Role)}
	}

	c.SetSession(&session)
	return &session, nil
}

// SignOut invalidates the token server-side and drops it locally. Local
// mirror data is never purged here.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil, "signout", "")
	c.mu.Lock()
	c.token = ""
	c.profile = nil
	c.mu.Unlock()
	return err
}

// SetSession restores a persisted session, e.g. a token read from disk at
// startup.
func (c *Client) SetSession(s *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.token = ""
		c.profile = nil
		return
	}
	c.token = s.Token
	p := s.Profile
	c.profile = &p
}

// Profile returns the signed-in profile, or nil before SignIn.
func (c *Client) Profile() *domain.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// Fetch returns the raw rows matching the filter. Decoding into tagged types
// happens in domain, right at this boundary.
func (c *Client) Fetch(ctx context.Context, collection domain.Collection, filter Filter) ([]json.RawMessage, error) {
	q := url.Values{}
	filter.Encode(q)

	var rows []json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/data/"+collection.String(), q, nil, &rows, "fetch", collection.String())
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Count is a count-only read; no rows cross the wire.
func (c *Client) Count(ctx context.Context, collection domain.Collection, filter Filter) (int, error) {
	q := url.Values{}
	filter.Encode(q)

	var out struct {
		Count int `json:"count"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/data/"+collection.String()+"/count", q, nil, &out, "count", collection.String())
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MutateOp selects the mutation verb.
type MutateOp string

const (
	MutateInsert MutateOp = "insert"
	MutateUpdate MutateOp = "update"
	MutateDelete MutateOp = "delete"
)

// Mutation describes one write. Insert uses Record; update uses ID and
// Record; delete uses ID or Filter. Mutations are never transactional across
// calls — a multi-step write is the caller's to sequence, and a failure
// partway leaves the remote store in a mixed state.
type Mutation struct {
	Op     MutateOp
	ID     string
	Record any
	Filter Filter
}

// Mutate applies one insert, update or delete and returns the resulting row
// for inserts and updates.
func (c *Client) Mutate(ctx context.Context, collection domain.Collection, m Mutation) (json.RawMessage, error) {
	path := "/api/v1/data/" + collection.String()

	var (
		method string
		q      url.Values
		body   any
	)
	switch m.Op {
	case MutateInsert:
		method = http.MethodPost
		body = m.Record
	case MutateUpdate:
		if m.ID == "" {
			return nil, &Error{Kind: KindQuery, Op: "mutate", Collection: collection.String(), Message: "update requires an id"}
		}
		method = http.MethodPatch
		path += "/" + url.PathEscape(m.ID)
		body = m.Record
	case MutateDelete:
		method = http.MethodDelete
		if m.ID != "" {
			path += "/" + url.PathEscape(m.ID)
		} else if len(m.Filter) > 0 {
			q = url.Values{}
			m.Filter.Encode(q)
		} else {
			return nil, &Error{Kind: KindQuery, Op: "mutate", Collection: collection.String(), Message: "delete requires an id or a filter"}
		}
	default:
		return nil, &Error{Kind: KindQuery, Op: "mutate", Collection: collection.String(), Message: fmt.Sprintf("unknown op %q", m.Op)}
	}

	var row json.RawMessage
	if err := c.doJSON(ctx, method, path, q, body, &row, "mutate", collection.String()); err != nil {
		return nil, err
	}
	return row, nil
}

// Insert, Update and Delete are the common Mutate shapes.

func (c *Client) Insert(ctx context.Context, collection domain.Collection, record any) (json.RawMessage, error) {
	return c.Mutate(ctx, collection, Mutation{Op: MutateInsert, Record: record})
}

func (c *Client) Update(ctx context.Context, collection domain.Collection, id string, record any) error {
	_, err := c.Mutate(ctx, collection, Mutation{Op: MutateUpdate, ID: id, Record: record})
	return err
}

func (c *Client) Delete(ctx context.Context, collection domain.Collection, filter Filter) error {
	_, err := c.Mutate(ctx, collection, Mutation{Op: MutateDelete, Filter: filter})
	return err
}

func (c *Client) DeleteByID(ctx context.Context, collection domain.Collection, id string) error {
	_, err := c.Mutate(ctx, collection, Mutation{Op: MutateDelete, ID: id})
	return err
}

// Upload stores a blob and returns its publicly resolvable URL. MIME type
// and size are not verified here.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte) (string, error) {
	target := fmt.Sprintf("%s/api/v1/storage/%s/%s", c.baseURL, url.PathEscape(bucket), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return "", &Error{Kind: KindNetwork, Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Op: "upload", Err: err}
	}
	if resp.StatusCode >= 400 {
		return "", c.statusError("upload", "", resp.StatusCode, raw)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{Kind: KindQuery, Op: "upload", Status: resp.StatusCode, Err: err}
	}
	return out.URL, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body, result any, op, collection string) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindQuery, Op: op, Collection: collection, Err: fmt.Errorf("marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Collection: collection, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	c.log.Debug("remote request", zap.String("method", method), zap.String("url", target))

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Collection: collection, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Collection: collection, Err: err}
	}

	c.log.Debug("remote response", zap.String("url", target), zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return c.statusError(op, collection, resp.StatusCode, raw)
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return &Error{Kind: KindQuery, Op: op, Collection: collection, Status: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
		}
	}
	return nil
}

// statusError maps an HTTP failure onto the error taxonomy, carrying the
// backend message through verbatim.
func (c *Client) statusError(op, collection string, status int, body []byte) *Error {
	kind := KindQuery
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}

	// The backend answers either {"error": "..."} or a problem+json
	// {"title": "...", "detail": "..."} body.
	var payload struct {
		Error  string `json:"error"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Detail != "":
			msg = payload.Detail
		case payload.Error != "":
			msg = payload.Error
		case payload.Title != "":
			msg = payload.Title
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &Error{Kind: kind, Op: op, Collection: collection, Status: status, Message: msg}
}
