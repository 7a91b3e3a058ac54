package meow

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	_ "golang.org/x/image/webp"
	"google.golang.org/protobuf/proto"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

const (
	// thumbnailSide is the bounding box for inline JPEG previews.
	thumbnailSide    = 72
	thumbnailQuality = 60
)

// uploader is the part of the whatsmeow client used to push media.
type uploader interface {
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
}

// mediaType picks the upload class for a MIME type.
func mediaType(mime string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mime, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

// thumbnail renders a small JPEG preview of an image. Undecodable input
// yields nil; previews are optional.
func thumbnail(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	img = imaging.Fit(img, thumbnailSide, thumbnailSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil
	}
	return buf.Bytes()
}

// buildMessage converts outgoing content into a protocol message, uploading
// media first when present.
func buildMessage(ctx context.Context, up uploader, content wa.Content) (*waE2E.Message, error) {
	if content.Media == nil {
		return textMessage(content.Text), nil
	}

	m := content.Media
	kind := mediaType(m.MimeType)
	res, err := up.Upload(ctx, m.Data, kind)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	size := proto.Uint64(uint64(len(m.Data)))

	switch kind {
	case whatsmeow.MediaImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(content.Text),
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(res.URL),
			DirectPath:    proto.String(res.DirectPath),
			MediaKey:      res.MediaKey,
			FileEncSHA256: res.FileEncSHA256,
			FileSHA256:    res.FileSHA256,
			FileLength:    size,
			JPEGThumbnail: thumbnail(m.Data),
		}}, nil
	case whatsmeow.MediaVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       proto.String(content.Text),
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(res.URL),
			DirectPath:    proto.String(res.DirectPath),
			MediaKey:      res.MediaKey,
			FileEncSHA256: res.FileEncSHA256,
			FileSHA256:    res.FileSHA256,
			FileLength:    size,
		}}, nil
	case whatsmeow.MediaAudio:
		// Audio messages carry no caption; the text follows as its own message.
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(res.URL),
			DirectPath:    proto.String(res.DirectPath),
			MediaKey:      res.MediaKey,
			FileEncSHA256: res.FileEncSHA256,
			FileSHA256:    res.FileSHA256,
			FileLength:    size,
		}}, nil
	default:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(content.Text),
			FileName:      proto.String(m.Filename),
			Title:         proto.String(m.Filename),
			Mimetype:      proto.String(m.MimeType),
			URL:           proto.String(res.URL),
			DirectPath:    proto.String(res.DirectPath),
			MediaKey:      res.MediaKey,
			FileEncSHA256: res.FileEncSHA256,
			FileSHA256:    res.FileSHA256,
			FileLength:    size,
		}}, nil
	}
}

func textMessage(text string) *waE2E.Message {
	return &waE2E.Message{Conversation: proto.String(text)}
}
