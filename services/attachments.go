package services

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"huddle-chat/domain"
)

// AttachmentUpload is the raw payload the caller hands over. The mime
// type is sniffed from the bytes, never trusted from the file name.
type AttachmentUpload struct {
	FileName string `validate:"required"`
	Data     []byte `validate:"required"`
}

func buildAttachments(uploads []AttachmentUpload) []domain.Attachment {
	return lo.Map(uploads, func(u AttachmentUpload, _ int) domain.Attachment {
		detected := mimetype.Detect(u.Data)
		return domain.Attachment{
			ID:       uuid.New(),
			FileName: u.FileName,
			MimeType: detected.String(),
			Size:     int64(len(u.Data)),
		}
	})
}

// typeForAttachments maps the first attachment's mime family onto a
// message type when the caller did not set one explicitly.
func typeForAttachments(attachments []domain.Attachment) domain.MessageType {
	if len(attachments) == 0 {
		return domain.MessageText
	}
	mime := attachments[0].MimeType
	switch {
	case strings.HasPrefix(mime, "image/"):
		return domain.MessageImage
	case strings.HasPrefix(mime, "video/"):
		return domain.MessageVideo
	case strings.HasPrefix(mime, "audio/"):
		return domain.MessageAudio
	default:
		return domain.MessageDocument
	}
}
