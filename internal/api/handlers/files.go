package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/deletion"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/quota"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

type FileHandler struct {
	files   store.Files
	ingest  *ingestion.Coordinator
	deleter *deletion.Coordinator
	quota   *quota.Checker
}

func NewFileHandler(files store.Files, ingest *ingestion.Coordinator, deleter *deletion.Coordinator, q *quota.Checker) *FileHandler {
	return &FileHandler{files: files, ingest: ingest, deleter: deleter, quota: q}
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := h.files.ListByUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if files == nil {
		files = []models.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

func (h *FileHandler) Quota(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.quota.Check(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Register acknowledges an upload. Indexing happens later; clients poll
// the status route.
func (h *FileHandler) Register(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ingestion.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.OwnerID = uid

	f, err := h.ingest.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, f)
}

// ByKey finds the caller's file for a storage key, used while the client
// waits for its upload to be registered.
func (h *FileHandler) ByKey(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.files.GetByKey(r.Context(), chi.URLParam(r, "*"))
	if err == nil && !f.OwnedBy(uid) {
		err = apperr.New(apperr.NotFound, "file not found")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Status reports PENDING for files that are absent or not the caller's.
func (h *FileHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := models.StatusPending
	f, err := h.files.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil && f.OwnedBy(uid):
		status = f.UploadStatus
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.UploadStatus{"status": status})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.deleter.DeleteOwned(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type AdminHandler struct {
	deleter *deletion.Coordinator
}

func NewAdminHandler(deleter *deletion.Coordinator) *AdminHandler {
	return &AdminHandler{deleter: deleter}
}

// DeleteFile always answers 200; the body says what happened.
func (h *AdminHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deleter.PurgeEverywhere(r.Context(), chi.URLParam(r, "id")))
}
