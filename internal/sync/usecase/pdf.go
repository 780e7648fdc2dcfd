package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"schoolcomms-backend/internal/comm/domain"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ProcessPendingPDFs downloads and text-extracts PDF attachments left behind
// by earlier childcare passes. Best-effort: each attachment fails alone, and
// a failed one stays not-downloaded for the next run. Returns how many
// attachments were completed.
func (s *SyncUsecase) ProcessPendingPDFs(ctx context.Context) (int, error) {
	if s.opener == nil {
		return 0, nil
	}

	pending, err := s.commRepo.PendingPDFAttachments(domain.SourceChildcare)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	s.report("attachments: %d pending PDFs", len(pending))

	done := 0
	for _, att := range pending {
		if err := s.downloadAndExtract(ctx, att); err != nil {
			s.metrics.PDFFailures.Inc()
			s.logger.Warn("pdf attachment skipped",
				zap.Uint("attachment", att.ID),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
			continue
		}
		s.metrics.PDFDownloads.Inc()
		done++
	}
	return done, nil
}

func (s *SyncUsecase) downloadAndExtract(ctx context.Context, att *domain.Attachment) error {
	if att.RemoteURL == "" {
		return fmt.Errorf("no remote url")
	}

	body, contentLength, err := s.opener.Open(ctx, att.RemoteURL)
	if err != nil {
		return err
	}
	defer body.Close()

	// header pre-check: an oversized download is never read at all
	if contentLength > s.cfg.PDFMaxBytes {
		return fmt.Errorf("content length %d exceeds limit %d", contentLength, s.cfg.PDFMaxBytes)
	}

	if err := os.MkdirAll(s.cfg.AttachmentsDir, 0o755); err != nil {
		return err
	}
	localName := fmt.Sprintf("%d_%d_%s", att.CommunicationID, att.ID, sanitizeFilename(att.Filename))
	localPath := filepath.Join(s.cfg.AttachmentsDir, localName)

	file, err := os.Create(localPath)
	if err != nil {
		return err
	}

	// stream guard: servers lie about (or omit) content length, so count
	// what actually arrives and abandon mid-stream past the limit
	written, err := io.Copy(file, io.LimitReader(body, s.cfg.PDFMaxBytes+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.cfg.PDFMaxBytes {
		err = fmt.Errorf("stream exceeded limit %d", s.cfg.PDFMaxBytes)
	}
	if err != nil {
		os.Remove(localPath)
		return err
	}

	att.LocalPath = localPath
	att.IsDownloaded = true
	text, err := s.extractText(localPath)
	if err != nil {
		// a saved but unreadable PDF still counts as downloaded
		s.logger.Warn("pdf text extraction failed", zap.String("path", localPath), zap.Error(err))
	} else if text != "" {
		att.ExtractedText = &text
	}

	return s.commRepo.SaveAttachment(att)
}

// extractPDFText joins the non-empty pages of a PDF with blank lines.
func extractPDFText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
