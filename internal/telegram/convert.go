package telegram

import (
	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
)

// Convert maps a wire message to the engine's view. Kind is decided by
// payload precedence: the most specific payload wins, text is the fallback.
func Convert(m *telego.Message) *relay.Message {
	out := &relay.Message{
		ID:           m.MessageID,
		ChatID:       m.Chat.ID,
		ChatUsername: m.Chat.Username,
		Text:         m.Text,
		GroupID:      m.MediaGroupID,
		Forwarded:    m.ForwardOrigin != nil,
		IsReply:      m.ReplyToMessage != nil,
		HasButtons:   m.ReplyMarkup != nil,
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	out.Entities = convertEntities(m.Entities, m.CaptionEntities)

	switch {
	case len(m.Photo) > 0:
		// Highest resolution is the last size variant.
		photo := m.Photo[len(m.Photo)-1]
		out.Kind = relay.KindPhoto
		out.Media = &relay.MediaRef{FileID: photo.FileID, UniqueID: photo.FileUniqueID}
	case m.VideoNote != nil:
		out.Kind = relay.KindVideoNote
		out.Media = &relay.MediaRef{FileID: m.VideoNote.FileID, UniqueID: m.VideoNote.FileUniqueID}
	case m.Video != nil:
		out.Kind = relay.KindVideo
		out.Media = &relay.MediaRef{FileID: m.Video.FileID, UniqueID: m.Video.FileUniqueID}
		out.FileName = m.Video.FileName
	case m.Voice != nil:
		out.Kind = relay.KindVoice
		out.Media = &relay.MediaRef{FileID: m.Voice.FileID, UniqueID: m.Voice.FileUniqueID}
	case m.Audio != nil:
		out.Kind = relay.KindAudio
		out.Media = &relay.MediaRef{FileID: m.Audio.FileID, UniqueID: m.Audio.FileUniqueID}
		out.FileName = m.Audio.FileName
	case m.Sticker != nil:
		out.Kind = relay.KindSticker
		out.Media = &relay.MediaRef{FileID: m.Sticker.FileID, UniqueID: m.Sticker.FileUniqueID}
	case m.Animation != nil:
		out.Kind = relay.KindGIF
		out.Media = &relay.MediaRef{FileID: m.Animation.FileID, UniqueID: m.Animation.FileUniqueID}
		out.FileName = m.Animation.FileName
	case m.Document != nil:
		out.Kind = relay.KindDocument
		out.Media = &relay.MediaRef{FileID: m.Document.FileID, UniqueID: m.Document.FileUniqueID}
		out.FileName = m.Document.FileName
	case m.Poll != nil:
		out.Kind = relay.KindPoll
	default:
		out.Kind = relay.KindText
	}
	return out
}

func convertEntities(groups ...[]telego.MessageEntity) []relay.Entity {
	var out []relay.Entity
	for _, entities := range groups {
		for _, e := range entities {
			switch e.Type {
			case telego.EntityTypeURL:
				out = append(out, relay.Entity{Type: relay.EntityURL})
			case telego.EntityTypeTextLink:
				out = append(out, relay.Entity{Type: relay.EntityTextLink})
			case telego.EntityTypeCustomEmoji:
				out = append(out, relay.Entity{Type: relay.EntityCustomEmoji})
			}
		}
	}
	return out
}
