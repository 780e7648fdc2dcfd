package usecase

import (
	"context"
	"io"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/pkg/childcare"
)

// MailProvider is the page contract both mail transports implement. Pages
// arrive newest first; an empty next token ends the feed.
type MailProvider interface {
	FetchPage(ctx context.Context, pageToken string) ([]*domain.CommunicationItem, string, error)
}

// ChildcareProvider is what the orchestrator needs from the childcare client.
type ChildcareProvider interface {
	GuardianID(ctx context.Context) (string, error)
	Dependents(ctx context.Context, guardianID string) ([]childcare.Dependent, error)
	ActivitiesPage(ctx context.Context, dep childcare.Dependent, page int) ([]*domain.CommunicationItem, bool, error)
	MessagesPage(ctx context.Context, dep childcare.Dependent, page int) ([]*domain.CommunicationItem, bool, error)
}

// GroupSource supplies the messaging group names to scrape.
type GroupSource interface {
	MessagingGroups() ([]string, error)
}

// AttachmentOpener starts an authenticated attachment download, returning
// the stream and the advertised content length (-1 when unknown).
type AttachmentOpener interface {
	Open(ctx context.Context, remoteURL string) (io.ReadCloser, int64, error)
}
