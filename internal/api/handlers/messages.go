package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/chat"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

const maxPageSize = 100

type MessageHandler struct {
	files       store.Files
	messages    store.Messages
	chat        *chat.Service
	defaultSize int
}

func NewMessageHandler(st *store.Store, chatSvc *chat.Service, defaultSize int) *MessageHandler {
	if defaultSize <= 0 || defaultSize > maxPageSize {
		defaultSize = 10
	}
	return &MessageHandler{files: st.Files, messages: st.Messages, chat: chatSvc, defaultSize: defaultSize}
}

// ownedFile checks the {id} route param belongs to the caller.
func (h *MessageHandler) ownedFile(r *http.Request) (string, string, error) {
	uid, err := callerID(r)
	if err != nil {
		return "", "", err
	}
	id := chi.URLParam(r, "id")
	f, err := h.files.Get(r.Context(), id)
	if err != nil {
		return "", "", err
	}
	if !f.OwnedBy(uid) {
		return "", "", apperr.New(apperr.NotFound, "file %s not found", id)
	}
	return uid, f.ID, nil
}

func (h *MessageHandler) parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.defaultSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxPageSize {
		return 0, apperr.New(apperr.Invalid, "limit must be between 1 and %d", maxPageSize)
	}
	return n, nil
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := h.parseLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, fileID, err := h.ownedFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.messages.Page(r.Context(), fileID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) Count(w http.ResponseWriter, r *http.Request) {
	_, fileID, err := h.ownedFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.messages.Count(r.Context(), fileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type sendRequest struct {
	Message string `json:"message"`
}

// Send answers a question about the file, as JSON or, with ?stream=1, as
// server-sent events.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fileID := chi.URLParam(r, "id")

	if r.URL.Query().Get("stream") != "1" {
		reply, err := h.chat.Send(r.Context(), uid, fileID, req.Message)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	ch, err := h.chat.Stream(r.Context(), uid, fileID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range ch {
		if chunk.Error != nil {
			fmt.Fprintf(w, "data: {\"error\":%q}\n\n", "answer interrupted")
			flusher.Flush()
			continue
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
