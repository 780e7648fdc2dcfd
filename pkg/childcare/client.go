package childcare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/pkg/credentials"
)

// ErrSessionExpired signals that the stored browser session was rejected and
// needs to be recaptured.
var ErrSessionExpired = errors.New("childcare session expired or invalid")

// SessionProvider supplies the browser-captured session the client
// authenticates with. Loaded per request so a recaptured session takes
// effect without a restart.
type SessionProvider interface {
	ChildcareSession() (*credentials.ChildcareSession, error)
}

// Dependent is one child linked to the guardian account.
type Dependent struct {
	ID        string
	FirstName string
	LastName  string
}

// Name returns the display name used in titles and student fields.
func (d Dependent) Name() string {
	if d.FirstName != "" && d.LastName != "" {
		return d.FirstName + " " + d.LastName
	}
	if d.FirstName != "" {
		return d.FirstName
	}
	return d.LastName
}

// Client talks to the childcare app's internal API with session cookies and
// a CSRF header. There is no public API, so the surface mirrors what the web
// app itself calls.
type Client struct {
	baseURL         string
	pageSize        int
	messagePageSize int
	sessions        SessionProvider
	client          *http.Client
}

func NewClient(baseURL string, pageSize int, sessions SessionProvider) *Client {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:         baseURL,
		pageSize:        pageSize,
		messagePageSize: 25,
		sessions:        sessions,
		client:          &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	session, err := c.sessions.ChildcareSession()
	if err != nil {
		return nil, fmt.Errorf("no childcare session captured: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if session.CSRFToken != "" {
		req.Header.Set("X-CSRF-Token", session.CSRFToken)
	}
	for name, value := range session.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w (status %d)", ErrSessionExpired, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("childcare API error (%d) on %s: %s", resp.StatusCode, path, truncate(string(body), 200))
	}
	return body, nil
}

// GuardianID fetches the current user and resolves the guardian account id.
func (c *Client) GuardianID(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/users/me", nil)
	if err != nil {
		return "", err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("malformed user profile: %w", err)
	}
	return resolveGuardianID(payload)
}

// Dependents lists the children linked to a guardian.
func (c *Client) Dependents(ctx context.Context, guardianID string) ([]Dependent, error) {
	body, err := c.get(ctx, "/guardians/"+guardianID+"/students", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Students []struct {
			Student map[string]interface{} `json:"student"`
		} `json:"students"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed students response: %w", err)
	}

	dependents := make([]Dependent, 0, len(payload.Students))
	for _, entry := range payload.Students {
		if entry.Student == nil {
			continue
		}
		dep := Dependent{
			ID:        stringField(entry.Student, "object_id", "id"),
			FirstName: stringField(entry.Student, "first_name"),
			LastName:  stringField(entry.Student, "last_name"),
		}
		if dep.ID == "" {
			continue
		}
		dependents = append(dependents, dep)
	}
	return dependents, nil
}

// ActivitiesPage fetches one page of a dependent's activity feed. hasMore is
// inferred from a full page; the feed endpoint has no explicit flag.
func (c *Client) ActivitiesPage(ctx context.Context, dep Dependent, page int) ([]*domain.CommunicationItem, bool, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))

	body, err := c.get(ctx, "/students/"+dep.ID+"/activities", params)
	if err != nil {
		return nil, false, err
	}

	var payload struct {
		Activities []map[string]interface{} `json:"activities"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("malformed activities response: %w", err)
	}

	items := make([]*domain.CommunicationItem, 0, len(payload.Activities))
	for _, activity := range payload.Activities {
		items = append(items, normalizeActivity(activity, dep.Name()))
	}
	hasMore := len(payload.Activities) >= c.pageSize
	return items, hasMore, nil
}

// MessagesPage fetches one page of a dependent's message feed.
func (c *Client) MessagesPage(ctx context.Context, dep Dependent, page int) ([]*domain.CommunicationItem, bool, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(c.messagePageSize))

	body, err := c.get(ctx, "/students/"+dep.ID+"/messages", params)
	if err != nil {
		return nil, false, err
	}

	var payload struct {
		Results []map[string]interface{} `json:"results"`
		HasMore bool                     `json:"has_more"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("malformed messages response: %w", err)
	}

	items := make([]*domain.CommunicationItem, 0, len(payload.Results))
	for _, result := range payload.Results {
		items = append(items, normalizeMessage(result, dep.Name()))
	}
	return items, payload.HasMore, nil
}

// Open starts an authenticated download of an attachment URL and returns the
// body stream plus the advertised content length (-1 when unknown). The
// caller owns closing the stream and enforcing size limits.
func (c *Client) Open(ctx context.Context, remoteURL string) (io.ReadCloser, int64, error) {
	session, err := c.sessions.ChildcareSession()
	if err != nil {
		return nil, 0, fmt.Errorf("no childcare session captured: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", remoteURL, nil)
	if err != nil {
		return nil, 0, err
	}
	for name, value := range session.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download failed (%d): %s", resp.StatusCode, remoteURL)
	}
	return resp.Body, resp.ContentLength, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
