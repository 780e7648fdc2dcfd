package imapmail

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// Service fetches mail over IMAP and normalizes it into communication items.
// It implements the same page contract as the Gmail transport: the opaque
// page token is the highest sequence number of the next (older) window, so
// pages walk from the newest message backwards.
type Service struct {
	server   string
	port     int
	username string
	password string
	pageSize uint32
}

func NewService(server string, port int, username, password string, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{
		server:   server,
		port:     port,
		username: username,
		password: password,
		pageSize: uint32(pageSize),
	}
}

func (s *Service) connect() (*client.Client, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", s.server, s.port), nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial failed: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}
	return c, nil
}

// FetchPage returns one window of normalized messages, newest first, plus the
// token of the next older window (empty when the mailbox is exhausted).
func (s *Service) FetchPage(ctx context.Context, pageToken string) ([]*domain.CommunicationItem, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	c, err := s.connect()
	if err != nil {
		return nil, "", err
	}
	defer c.Logout()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, "", fmt.Errorf("imap select failed: %w", err)
	}

	end := mbox.Messages
	if pageToken != "" {
		parsed, err := strconv.ParseUint(pageToken, 10, 32)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		end = uint32(parsed)
	}
	if end == 0 {
		return nil, "", nil
	}

	start := uint32(1)
	if end > s.pageSize {
		start = end - s.pageSize + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(start, end)

	section := &imap.BodySectionName{Peek: true}
	fetchItems := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, s.pageSize)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, fetchItems, messages)
	}()

	var items []*domain.CommunicationItem
	for msg := range messages {
		item, err := normalizeMessage(msg, section)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	if err := <-done; err != nil {
		return nil, "", fmt.Errorf("imap fetch failed: %w", err)
	}

	// fetch yields ascending sequence numbers; the orchestrator wants
	// newest first
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	next := ""
	if start > 1 {
		next = strconv.FormatUint(uint64(start-1), 10)
	}
	return items, next, nil
}

func normalizeMessage(msg *imap.Message, section *imap.BodySectionName) (*domain.CommunicationItem, error) {
	if msg.Envelope == nil {
		return nil, fmt.Errorf("message without envelope")
	}

	sourceID := msg.Envelope.MessageId
	if sourceID == "" {
		sourceID = fmt.Sprintf("imap-uid-%d", msg.Uid)
	}

	item := &domain.CommunicationItem{
		Source:    domain.SourceMail,
		SourceID:  "mail_" + strings.Trim(sourceID, "<>"),
		Title:     msg.Envelope.Subject,
		Timestamp: msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		item.Sender = msg.Envelope.From[0].Address()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	body := msg.GetBody(section)
	if body == nil {
		return item, nil
	}

	reader, err := mail.CreateReader(body)
	if err != nil {
		return item, nil
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := header.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch contentType {
			case "text/plain":
				if item.BodyPlain == "" {
					item.BodyPlain = string(content)
				}
			case "text/html":
				if item.BodyHTML == "" {
					item.BodyHTML = string(content)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			if filename == "" {
				continue
			}
			contentType, _, _ := header.ContentType()
			item.Attachments = append(item.Attachments, domain.Attachment{
				Filename: filename,
				MimeType: contentType,
			})
		}
	}

	return item, nil
}
