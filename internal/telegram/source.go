package telegram

import (
	"github.com/dmitrijs2005/megarelay/internal/media"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SourceFromMessage extracts the relayable file of m, if it carries one.
func SourceFromMessage(m *tgbotapi.Message) (media.Source, bool) {
	if m == nil {
		return nil, false
	}

	switch {
	case m.Document != nil:
		return media.Document{
			FileID:   m.Document.FileID,
			Name:     m.Document.FileName,
			MimeType: m.Document.MimeType,
			Size:     int64(m.Document.FileSize),
		}, true
	case m.Video != nil:
		return media.Video{
			FileID:   m.Video.FileID,
			UniqueID: m.Video.FileUniqueID,
			Size:     int64(m.Video.FileSize),
		}, true
	case m.Audio != nil:
		return media.Generic{
			FileID:   m.Audio.FileID,
			UniqueID: m.Audio.FileUniqueID,
			MimeType: m.Audio.MimeType,
			Size:     int64(m.Audio.FileSize),
		}, true
	case m.Voice != nil:
		return media.Generic{
			FileID:   m.Voice.FileID,
			UniqueID: m.Voice.FileUniqueID,
			MimeType: m.Voice.MimeType,
			Size:     int64(m.Voice.FileSize),
		}, true
	case len(m.Photo) > 0:
		p := m.Photo[len(m.Photo)-1]
		return media.Generic{
			FileID:   p.FileID,
			UniqueID: p.FileUniqueID,
			MimeType: "image/jpeg",
			Size:     int64(p.FileSize),
		}, true
	}
	return nil, false
}
