package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/quota"
	"github.com/nikhilbhutani/pdfmate/internal/storage"
)

type UploadHandler struct {
	objects storage.ObjectStore
	quota   *quota.Checker
	plans   quota.PlanResolver
	admins  auth.AdminPolicy
}

func NewUploadHandler(objects storage.ObjectStore, q *quota.Checker, plans quota.PlanResolver, admins auth.AdminPolicy) *UploadHandler {
	return &UploadHandler{objects: objects, quota: q, plans: plans, admins: admins}
}

type uploadRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type uploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	URL       string `json:"url"`
}

// Create hands out a presigned PUT for a new PDF, unless the caller's
// monthly quota is used up or the file is too large for the plan. Admins
// are not limited.
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req uploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/pdf"
	}
	if req.ContentType != "application/pdf" || !strings.HasSuffix(strings.ToLower(req.Name), ".pdf") {
		writeError(w, r, apperr.New(apperr.Invalid, "only PDF uploads are accepted"))
		return
	}

	if h.admins == nil || !h.admins.IsAdmin(uid) {
		if err := h.checkLimits(r.Context(), uid, req.Size); err != nil {
			writeError(w, r, err)
			return
		}
	}

	key := storage.NewKey(uid, req.Name)
	uploadURL, err := h.objects.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.External, err, "presign upload"))
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Key: key, UploadURL: uploadURL, URL: h.objects.PublicURL(key)})
}

func (h *UploadHandler) checkLimits(ctx context.Context, uid string, size int64) error {
	st, err := h.quota.Check(ctx, uid)
	if err != nil {
		return err
	}
	if st.IsCompleted {
		return apperr.New(apperr.QuotaExceeded, "monthly quota of %d files reached", st.Quota)
	}

	sp, err := h.plans.Resolve(ctx, uid)
	if err != nil {
		return err
	}
	if size > sp.MaxFileSizeBytes() {
		return apperr.New(apperr.Invalid, "file exceeds the %d MB limit of the %s plan", sp.MaxFileSizeMB, sp.Name)
	}
	return nil
}
