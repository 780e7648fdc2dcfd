package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(*oauth2.Token) error

// TokenStore supplies the stored OAuth token and persists refreshed ones.
type TokenStore interface {
	LoadMailToken() (*oauth2.Token, error)
	SaveMailToken(token *oauth2.Token) error
}

// Service fetches mail through the Gmail API and normalizes it into
// communication items. One instance per account.
type Service struct {
	clientID     string
	clientSecret string
	query        string
	pageSize     int64
	tokens       TokenStore
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret, query string, pageSize int64, tokens TokenStore) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		query:        query,
		pageSize:     pageSize,
		tokens:       tokens,
	}
}

// gmailService creates a Gmail client from the stored token, wrapping the
// token source so refreshes get written back to the store.
func (s *Service) gmailService(ctx context.Context) (*gmail.Service, error) {
	token, err := s.tokens.LoadMailToken()
	if err != nil {
		return nil, fmt.Errorf("mail token unavailable: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: s.tokens.SaveMailToken,
	}

	client := oauth2.NewClient(ctx, wrappedSource)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// FetchPage returns one page of normalized messages, newest first, plus the
// next page token (empty when exhausted).
func (s *Service) FetchPage(ctx context.Context, pageToken string) ([]*domain.CommunicationItem, string, error) {
	srv, err := s.gmailService(ctx)
	if err != nil {
		return nil, "", err
	}

	user := "me"
	listQuery := srv.Users.Messages.List(user).MaxResults(s.pageSize)
	if s.query != "" {
		listQuery = listQuery.Q(s.query)
	}
	if pageToken != "" {
		listQuery = listQuery.PageToken(pageToken)
	}

	resp, err := listQuery.Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("unable to list messages: %w", err)
	}

	items := make([]*domain.CommunicationItem, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		fullMsg, err := srv.Users.Messages.Get(user, msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, "", fmt.Errorf("unable to fetch message %s: %w", msg.Id, err)
		}
		items = append(items, normalizeMessage(fullMsg))
	}

	return items, resp.NextPageToken, nil
}

// normalizeMessage flattens one Gmail message into the canonical record.
func normalizeMessage(msg *gmail.Message) *domain.CommunicationItem {
	item := &domain.CommunicationItem{
		Source:       domain.SourceMail,
		SourceID:     "mail_" + msg.Id,
		MailThreadID: msg.ThreadId,
		MailSnippet:  msg.Snippet,
		Timestamp:    time.UnixMilli(msg.InternalDate),
	}

	if len(msg.LabelIds) > 0 {
		if labels, err := json.Marshal(msg.LabelIds); err == nil {
			item.MailLabelIDs = string(labels)
		}
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "Subject":
				item.Title = header.Value
			case "From":
				item.Sender = header.Value
			}
		}
		walkParts(msg.Payload, item)
	}

	return item
}

// walkParts recursively collects body text and attachment references from the
// MIME tree.
func walkParts(part *gmail.MessagePart, item *domain.CommunicationItem) {
	if part == nil {
		return
	}

	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		item.Attachments = append(item.Attachments, domain.Attachment{
			Filename:  part.Filename,
			MimeType:  part.MimeType,
			RemoteURL: part.Body.AttachmentId,
		})
	} else if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if item.BodyPlain == "" {
					item.BodyPlain = string(decoded)
				}
			case "text/html":
				if item.BodyHTML == "" {
					item.BodyHTML = string(decoded)
				}
			}
		}
	}

	for _, child := range part.Parts {
		walkParts(child, item)
	}
}
