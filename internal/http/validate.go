package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/vincent-petithory/dataurl"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

// defaultMediaFilename is used when inline media carries no filename.
const defaultMediaFilename = "file"

// flexString accepts a JSON string or number. Phone numbers arrive as both.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(data)
	return nil
}

// inlineMedia is the JSON media object {mimetype, data, filename}. data is
// base64 or a data: URL.
type inlineMedia struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

// parseInlineMedia decodes the optional media field. It accepts the object
// itself or a string holding its JSON (as sent in multipart forms). Objects
// without data or mimetype are ignored.
func parseInlineMedia(raw json.RawMessage) (*wa.Media, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}

	var m inlineMedia
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil
	}
	if m.Data == "" || m.MimeType == "" {
		return nil, nil
	}

	data, mimeType, err := decodeMediaData(m.Data, m.MimeType)
	if err != nil {
		return nil, err
	}
	name := m.Filename
	if name == "" {
		name = defaultMediaFilename
	}
	return &wa.Media{MimeType: mimeType, Data: data, Filename: name}, nil
}

func decodeMediaData(data, mimeType string) ([]byte, string, error) {
	if strings.HasPrefix(data, "data:") {
		du, err := dataurl.DecodeString(data)
		if err != nil {
			return nil, "", fmt.Errorf("invalid media data url: %w", err)
		}
		return du.Data, mimeType, nil
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(data); err != nil {
			return nil, "", errors.New("invalid media data: expected base64")
		}
	}
	return b, mimeType, nil
}

// uploadedMedia reads the "media" file part of a parsed multipart form.
// It returns nil when the request carries no file.
func uploadedMedia(r *http.Request) (*wa.Media, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("media")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &wa.Media{MimeType: mimeType, Data: data, Filename: header.Filename}, nil
}

// isMultipart reports whether r carries a multipart/form-data body.
func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
