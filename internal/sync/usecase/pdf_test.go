package usecase

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpener serves a fixed body and advertised content length.
type fakeOpener struct {
	body          string
	contentLength int64
	opened        int
}

func (f *fakeOpener) Open(ctx context.Context, remoteURL string) (io.ReadCloser, int64, error) {
	f.opened++
	return io.NopCloser(strings.NewReader(f.body)), f.contentLength, nil
}

func seedPDFAttachment(t *testing.T, fix *fixture) *domain.CommunicationItem {
	t.Helper()
	item := childcareItem("with-pdf", time.Now())
	item.Attachments = []domain.Attachment{{
		Filename:  "menu.pdf",
		MimeType:  "application/pdf",
		RemoteURL: "https://cdn.example.com/menu.pdf",
	}}
	require.NoError(t, fix.commRepo.Create(item))
	return item
}

func pendingAttachment(t *testing.T, fix *fixture) *domain.Attachment {
	t.Helper()
	var att domain.Attachment
	require.NoError(t, fix.db.First(&att).Error)
	return &att
}

func TestPDFHeaderPreCheckSkipsOversized(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)
	seedPDFAttachment(t, fix)

	opener := &fakeOpener{body: "small", contentLength: 50 * 1024 * 1024}
	fix.uc.opener = opener

	done, err := fix.uc.ProcessPendingPDFs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)

	att := pendingAttachment(t, fix)
	assert.False(t, att.IsDownloaded, "oversized attachment stays pending")
	assert.Empty(t, att.LocalPath)
}

func TestPDFStreamGuardAbandonsMidStream(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)
	seedPDFAttachment(t, fix)

	// content length unknown (-1), body larger than the 1024-byte test limit
	opener := &fakeOpener{body: strings.Repeat("x", 4096), contentLength: -1}
	fix.uc.opener = opener

	done, err := fix.uc.ProcessPendingPDFs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)

	att := pendingAttachment(t, fix)
	assert.False(t, att.IsDownloaded)
}

func TestPDFDownloadAndExtract(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)
	seedPDFAttachment(t, fix)

	fix.uc.opener = &fakeOpener{body: "%PDF-1.4 tiny", contentLength: 13}
	fix.uc.extractText = func(path string) (string, error) {
		return "Lunch menu\n\nWeek of Feb 10", nil
	}

	done, err := fix.uc.ProcessPendingPDFs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	att := pendingAttachment(t, fix)
	assert.True(t, att.IsDownloaded)
	assert.NotEmpty(t, att.LocalPath)
	require.NotNil(t, att.ExtractedText)
	assert.Contains(t, *att.ExtractedText, "Lunch menu")
}

func TestPDFExtractionFailureStillMarksDownloaded(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)
	seedPDFAttachment(t, fix)

	fix.uc.opener = &fakeOpener{body: "not really a pdf", contentLength: 16}
	// default extractor runs against the garbage body and fails

	done, err := fix.uc.ProcessPendingPDFs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	att := pendingAttachment(t, fix)
	assert.True(t, att.IsDownloaded)
	assert.Nil(t, att.ExtractedText)
}

func TestPDFSelectionIgnoresDownloadedAndNonPDF(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)

	item := childcareItem("mixed", time.Now())
	item.Attachments = []domain.Attachment{
		{Filename: "photo.jpg", MimeType: "image/jpeg", RemoteURL: "https://cdn.example.com/p.jpg"},
		{Filename: "done.pdf", MimeType: "application/pdf", RemoteURL: "https://cdn.example.com/d.pdf", IsDownloaded: true},
	}
	require.NoError(t, fix.commRepo.Create(item))

	opener := &fakeOpener{body: "x", contentLength: 1}
	fix.uc.opener = opener

	done, err := fix.uc.ProcessPendingPDFs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)
	assert.Equal(t, 0, opener.opened)
}
