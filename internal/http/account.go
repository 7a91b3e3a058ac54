package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/wagate/internal/wa"
)

// groupView is the projection returned by /api/groups.
type groupView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Subject      string `json:"subject,omitempty"`
	IsGroup      bool   `json:"isGroup"`
	Participants int    `json:"participants"`
	UnreadCount  int    `json:"unreadCount"`
}

func toGroupView(c wa.Chat) groupView {
	name := c.Name
	if name == "" {
		name = c.Subject
	}
	if name == "" {
		name = "Unknown Group"
	}
	return groupView{
		ID:           c.ID,
		Name:         name,
		Subject:      c.Subject,
		IsGroup:      c.IsGroup,
		Participants: c.Participants,
		UnreadCount:  c.UnreadCount,
	}
}

func (h *Handler) handleContacts(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}
	contacts, err := client.GetContacts(r.Context())
	if err != nil {
		slog.Error("get contacts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get contacts: "+err.Error())
		return
	}
	if contacts == nil {
		contacts = []wa.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}
	chats, err := client.GetChats(r.Context())
	if err != nil {
		slog.Error("get chats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get groups: "+err.Error())
		return
	}

	groups := make([]groupView, 0, len(chats))
	for _, c := range chats {
		if c.IsGroup {
			groups = append(groups, toGroupView(c))
		}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) handleClientInfo(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}
	info := client.Info()
	if info == nil {
		writeError(w, http.StatusInternalServerError, "Failed to get client info: account info unavailable")
		return
	}

	var picture *string
	if wid := wa.WIDString(info.WID); wid != "" {
		if url := h.profilePicture(r.Context(), client, wid); url != "" {
			picture = &url
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wid":            wa.FormatWID(info.WID),
		"fullWid":        info.WID,
		"pushname":       info.PushName,
		"platform":       info.Platform,
		"profilePicture": picture,
		"connected":      true,
	})
}

// profilePicture looks up wid's picture within the configured bound. Timeouts
// and failures resolve to "".
func (h *Handler) profilePicture(ctx context.Context, client wa.Client, wid string) string {
	if url, ok := h.picCache.Get(wid); ok {
		return url
	}

	ctx, cancel := context.WithTimeout(ctx, h.picTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		url, err := client.GetProfilePicURL(ctx, wid)
		ch <- result{url, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			slog.Debug("profile picture unavailable", "wid", wid, "error", res.err)
			return ""
		}
		if res.url != "" {
			h.picCache.Add(wid, res.url)
		}
		return res.url
	case <-ctx.Done():
		slog.Debug("profile picture lookup timed out", "wid", wid)
		return ""
	}
}

func (h *Handler) handleTestProfilePic(w http.ResponseWriter, r *http.Request) {
	client := h.readyClient(w)
	if client == nil {
		return
	}
	info := client.Info()
	if info == nil {
		writeError(w, http.StatusInternalServerError, "Failed to test profile picture: account info unavailable")
		return
	}

	wid := wa.WIDString(info.WID)
	var picURL *string
	if wid != "" {
		url, err := client.GetProfilePicURL(r.Context(), wid)
		if err != nil {
			slog.Debug("profile picture lookup failed", "wid", wid, "error", err)
		} else if url != "" {
			picURL = &url
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wid":           wid,
		"pushname":      info.PushName,
		"profilePicUrl": picURL,
	})
}
