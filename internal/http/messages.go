package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

// DefaultMaxUploadBytes caps multipart media uploads.
const DefaultMaxUploadBytes = 16 << 20

// multipartOverhead allows for form fields alongside the media part.
const multipartOverhead = 1 << 20

type sendMessageRequest struct {
	Number  flexString      `json:"number"`
	Message string          `json:"message"`
	Media   json.RawMessage `json:"media"`
}

type sendBroadcastRequest struct {
	Numbers []flexString    `json:"numbers"`
	Message string          `json:"message"`
	Media   json.RawMessage `json:"media"`
}

type sendGroupRequest struct {
	GroupID string          `json:"groupId"`
	Message string          `json:"message"`
	Media   json.RawMessage `json:"media"`
}

// BroadcastResult is the outcome for one broadcast recipient.
type BroadcastResult struct {
	Number string `json:"number"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	broadcastSuccess = "success"
	broadcastError   = "error"
)

func (h *Handler) maxUploadBytes() int64 {
	if h.cfg != nil && h.cfg.Gateway.MaxUploadBytes > 0 {
		return h.cfg.Gateway.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

// readSendMessage parses either a multipart form or a JSON body. An uploaded
// file takes precedence over inline media.
func (h *Handler) readSendMessage(w http.ResponseWriter, r *http.Request) (number, text string, media *wa.Media, err error) {
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes()+multipartOverhead)
		if err := r.ParseMultipartForm(h.maxUploadBytes()); err != nil {
			return "", "", nil, err
		}
		media, err = uploadedMedia(r)
		if err != nil {
			return "", "", nil, err
		}
		if media == nil {
			media, err = parseInlineMedia(json.RawMessage(r.FormValue("media")))
		}
		return r.FormValue("number"), r.FormValue("message"), media, err
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", "", nil, err
	}
	media, err = parseInlineMedia(req.Media)
	return string(req.Number), req.Message, media, err
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}

	number, text, media, err := h.readSendMessage(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Media file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if number == "" || text == "" {
		writeError(w, http.StatusBadRequest, "Number and message are required")
		return
	}

	chatID := wa.ContactChatID(number)
	if err := client.SendMessage(r.Context(), chatID, wa.Content{Text: text, Media: media}); err != nil {
		slog.Error("send message failed", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send message: "+err.Error())
		return
	}
	writeSuccess(w, "Message sent successfully")
}

func (h *Handler) handleSendBroadcast(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}

	var req sendBroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Numbers) == 0 {
		writeError(w, http.StatusBadRequest, "Numbers array is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	media, err := parseInlineMedia(req.Media)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]BroadcastResult, 0, len(req.Numbers))
	for _, n := range req.Numbers {
		number := string(n)
		res := BroadcastResult{Number: number, Status: broadcastSuccess}
		if err := client.SendMessage(r.Context(), wa.ContactChatID(number), wa.Content{Text: req.Message, Media: media}); err != nil {
			res.Status = broadcastError
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (h *Handler) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}

	var req sendGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.GroupID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Group ID and message are required")
		return
	}
	media, err := parseInlineMedia(req.Media)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chatID := wa.GroupChatID(req.GroupID)
	if err := client.SendMessage(r.Context(), chatID, wa.Content{Text: req.Message, Media: media}); err != nil {
		slog.Error("send group message failed", "chat", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to send group message: "+err.Error())
		return
	}
	writeSuccess(w, "Group message sent successfully")
}
