package messaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"schoolcomms-backend/internal/comm/domain"
)

// Message is one scraped chat message.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
}

// Scraper is the narrow seam to the browser-automation sidecar that reads
// the messaging app. The sync orchestrator only ever talks to this
// interface; how messages get off the screen is not its problem.
type Scraper interface {
	HasSession(ctx context.Context) bool
	ScrapeGroup(ctx context.Context, group string, since *time.Time) ([]Message, error)
}

// BridgeClient implements Scraper against the local scraping sidecar's HTTP
// bridge.
type BridgeClient struct {
	baseURL string
	client  *http.Client
}

func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// HasSession reports whether the sidecar holds a logged-in session. Any
// bridge failure counts as no session; the caller surfaces that as a
// credential problem, not a crash.
func (b *BridgeClient) HasSession(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/session", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return payload.Active
}

// ScrapeGroup asks the sidecar to scrape one group's messages, optionally
// bounded to messages at or after since.
func (b *BridgeClient) ScrapeGroup(ctx context.Context, group string, since *time.Time) ([]Message, error) {
	request := map[string]interface{}{"group": group}
	if since != nil {
		request["since"] = since.Format(time.RFC3339)
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/scrape", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape bridge error (%d): %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("malformed scrape response: %w", err)
	}
	return payload.Messages, nil
}

// Normalize converts a scraped message into the canonical record. Chat
// messages have no native id, so the dedup key is a hash over the fields
// that make a message itself: timestamp, sender and body.
func Normalize(group string, msg Message) *domain.CommunicationItem {
	title := msg.Body
	if len(title) > 80 {
		title = title[:80] + "..."
	}
	return &domain.CommunicationItem{
		Source:    domain.SourceMessaging,
		SourceID:  "msg_" + messageDigest(msg),
		Timestamp: msg.Timestamp,
		Title:     title,
		Sender:    msg.Sender,
		BodyPlain: msg.Body,
		GroupName: group,
	}
}

func messageDigest(msg Message) string {
	payload := fmt.Sprintf("%s|%s|%s", msg.Timestamp.UTC().Format(time.RFC3339), msg.Sender, msg.Body)
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])[:16]
}
