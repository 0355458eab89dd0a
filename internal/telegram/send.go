package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
)

const downloadMaxRetries = 3

// Forward relays original messages with sender attribution preserved. A batch
// of ids (an album) stays grouped on the destination side.
func (c *Client) Forward(ctx context.Context, to relay.Peer, fromChat int64, messageIDs []int) error {
	_, err := c.bot.ForwardMessages(ctx, &telego.ForwardMessagesParams{
		ChatID:     tu.ID(to.ID),
		FromChatID: tu.ID(fromChat),
		MessageIDs: messageIDs,
	})
	if err != nil {
		return fmt.Errorf("forward to %d: %w", to.ID, err)
	}
	return nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to relay.Peer, text string, opts relay.SendOpts) error {
	params := tu.Message(tu.ID(to.ID), text)
	if opts.DisableLinkPreview {
		params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
	if kb := buildKeyboard(opts.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send text to %d: %w", to.ID, err)
	}
	return nil
}

// Download fetches media to a local file and returns its path. The caller
// owns cleanup.
func (c *Client) Download(ctx context.Context, media *relay.MediaRef) (string, error) {
	var file *telego.File
	var err error
	for attempt := 1; attempt <= downloadMaxRetries; attempt++ {
		file, err = c.bot.GetFile(ctx, &telego.GetFileParams{FileID: media.FileID})
		if err == nil {
			break
		}
		if attempt < downloadMaxRetries {
			c.log.Debug("retrying file info fetch", "file_id", media.FileID, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("get file info after %d attempts: %w", downloadMaxRetries, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("empty file path for file_id %s", media.FileID)
	}
	if int64(file.FileSize) > c.cfg.MediaMaxBytes {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", file.FileSize, c.cfg.MediaMaxBytes)
	}

	downloadURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.cfg.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".bin"
	}
	dir := c.cfg.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmpFile, err := os.CreateTemp(dir, "teleflow_media_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, io.LimitReader(resp.Body, c.cfg.MediaMaxBytes+1))
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("save file: %w", err)
	}
	if written > c.cfg.MediaMaxBytes {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("file exceeds max size during download: %d bytes", written)
	}
	return tmpFile.Name(), nil
}

// Upload re-sends one downloaded file as a new message, using the kind's
// dedicated send method.
func (c *Client) Upload(ctx context.Context, to relay.Peer, up relay.Upload) error {
	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	name := up.FileName
	if name == "" {
		name = filepath.Base(up.Path)
	}
	input := tu.File(tu.NameReader(f, name))
	chatID := tu.ID(to.ID)
	kb := buildKeyboard(up.Buttons)

	switch up.Kind {
	case relay.KindPhoto:
		params := &telego.SendPhotoParams{ChatID: chatID, Photo: input, Caption: up.Caption}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = c.bot.SendPhoto(ctx, params)
	case relay.KindVideo:
		params := &telego.SendVideoParams{ChatID: chatID, Video: input, Caption: up.Caption}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = c.bot.SendVideo(ctx, params)
	case relay.KindVideoNote:
		_, err = c.bot.SendVideoNote(ctx, &telego.SendVideoNoteParams{ChatID: chatID, VideoNote: input})
	case relay.KindVoice:
		_, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{ChatID: chatID, Voice: input})
	case relay.KindAudio:
		params := &telego.SendAudioParams{ChatID: chatID, Audio: input, Caption: up.Caption}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = c.bot.SendAudio(ctx, params)
	case relay.KindSticker:
		_, err = c.bot.SendSticker(ctx, &telego.SendStickerParams{ChatID: chatID, Sticker: input})
	case relay.KindGIF:
		params := &telego.SendAnimationParams{ChatID: chatID, Animation: input, Caption: up.Caption}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = c.bot.SendAnimation(ctx, params)
	default:
		params := &telego.SendDocumentParams{ChatID: chatID, Document: input, Caption: up.Caption}
		if kb != nil {
			params.ReplyMarkup = kb
		}
		_, err = c.bot.SendDocument(ctx, params)
	}
	if err != nil {
		return fmt.Errorf("upload %s to %d: %w", up.Kind, to.ID, err)
	}
	return nil
}

// UploadAlbum sends downloaded files as one media group, the caption on the
// first item. Kinds without a grouped form (stickers, voice, video notes) are
// sent as documents so the member is not lost.
func (c *Client) UploadAlbum(ctx context.Context, to relay.Peer, items []relay.AlbumItem, caption string) error {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	var media []telego.InputMedia
	for i, item := range items {
		f, err := os.Open(item.Path)
		if err != nil {
			return fmt.Errorf("open album member: %w", err)
		}
		files = append(files, f)
		input := tu.File(tu.NameReader(f, filepath.Base(item.Path)))

		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		switch item.Kind {
		case relay.KindPhoto:
			media = append(media, tu.MediaPhoto(input).WithCaption(itemCaption))
		case relay.KindVideo:
			media = append(media, tu.MediaVideo(input).WithCaption(itemCaption))
		case relay.KindAudio:
			media = append(media, tu.MediaAudio(input).WithCaption(itemCaption))
		default:
			media = append(media, tu.MediaDocument(input).WithCaption(itemCaption))
		}
	}

	_, err := c.bot.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
		ChatID: tu.ID(to.ID),
		Media:  media,
	})
	if err != nil {
		return fmt.Errorf("send media group to %d: %w", to.ID, err)
	}
	return nil
}

func buildKeyboard(buttons [][]relay.Button) *telego.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		var btns []telego.InlineKeyboardButton
		for _, b := range row {
			btns = append(btns, tu.InlineKeyboardButton(b.Text).WithURL(b.URL))
		}
		rows = append(rows, btns)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}
