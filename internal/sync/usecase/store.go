package usecase

import (
	"net/url"
	"path/filepath"
	"strings"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"

	"go.uber.org/zap"
)

// sourceIDPrefixes are the namespaces adapters stamp onto their ids. A bare
// prefix means the upstream record id was missing; storing it would make one
// broken record shadow every later one with the same defect.
var sourceIDPrefixes = []string{"mail_", "childcare_act_", "childcare_msg_", "msg_"}

// extensionMimeTypes maps known attachment extensions to MIME types when the
// upstream feed does not say.
var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

const fallbackMimeType = "image/jpeg"

// storeItem writes one normalized item through the dedup check. Returns
// whether a row was inserted; an existing source_id is a silent skip. A
// degenerate source id is a logged skip, so one malformed upstream record
// cannot wedge its source's whole pass.
func (s *SyncUsecase) storeItem(comms repository.CommunicationRepository, item *domain.CommunicationItem) (bool, error) {
	if degenerateSourceID(item.SourceID) {
		s.logger.Warn("skipping item with degenerate source id",
			zap.String("source_id", item.SourceID),
			zap.String("title", item.Title))
		return false, nil
	}

	existing, err := comms.FindBySourceID(item.SourceID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	for i := range item.Attachments {
		att := &item.Attachments[i]
		att.Filename = sanitizeFilename(att.Filename)
		att.MimeType = resolveMimeType(att.MimeType, att.Filename)
	}

	if err := comms.Create(item); err != nil {
		return false, err
	}
	return true, nil
}

func degenerateSourceID(id string) bool {
	if id == "" {
		return true
	}
	for _, prefix := range sourceIDPrefixes {
		if id == prefix {
			return true
		}
	}
	return false
}

// resolveMimeType applies the fallback chain: explicit type, then the
// extension table, then the image default (photo feeds dominate).
func resolveMimeType(explicit, filename string) string {
	if explicit != "" {
		return explicit
	}
	ext := strings.ToLower(filepath.Ext(stripQuery(filename)))
	if mime, ok := extensionMimeTypes[ext]; ok {
		return mime
	}
	return fallbackMimeType
}

// sanitizeFilename percent-decodes and strips path separators so a hostile
// or sloppy upstream name can never escape the attachments dir.
func sanitizeFilename(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = stripQuery(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "attachment"
	}
	return name
}

func stripQuery(name string) string {
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		return name[:idx]
	}
	return name
}
