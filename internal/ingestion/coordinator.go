// Package ingestion registers uploaded PDFs and indexes them page by page.
//
// Register is the cheap, request-bound half: it commits the File in
// PROCESSING and hands a Job to a Dispatcher. Process is the expensive half
// and runs in the worker (or an in-process pool). Process never returns an
// error for pipeline failures; the outcome is the file's terminal status.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/billing"
	"github.com/nikhilbhutani/pdfmate/internal/document"
	"github.com/nikhilbhutani/pdfmate/internal/embedding"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/storage"
	"github.com/nikhilbhutani/pdfmate/internal/store"
	"github.com/nikhilbhutani/pdfmate/internal/vectorstore"
)

// Job is the payload handed from Register to Process.
type Job struct {
	FileID  string `json:"file_id"`
	OwnerID string `json:"owner_id"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

type PlanResolver interface {
	Resolve(ctx context.Context, userID string) (*billing.SubscriptionPlan, error)
}

type RegisterRequest struct {
	Key     string `json:"key"`
	URL     string `json:"url,omitempty"`
	Name    string `json:"name"`
	OwnerID string `json:"-"`
}

type Coordinator struct {
	files      store.Files
	objects    storage.ObjectStore
	loader     document.Loader
	embedder   embedding.Embedder
	vectors    vectorstore.VectorStore
	plans      PlanResolver
	admins     auth.AdminPolicy
	dispatcher Dispatcher
	observer   Observer
}

type Deps struct {
	Files    store.Files
	Objects  storage.ObjectStore
	Loader   document.Loader
	Embedder embedding.Embedder
	Vectors  vectorstore.VectorStore
	Plans    PlanResolver
	Admins   auth.AdminPolicy
	Observer Observer
}

// NewCoordinator wires the pipeline. The dispatcher is set separately with
// SetDispatcher because the in-process pool needs the coordinator itself.
func NewCoordinator(d Deps) *Coordinator {
	c := &Coordinator{
		files:    d.Files,
		objects:  d.Objects,
		loader:   d.Loader,
		embedder: d.Embedder,
		vectors:  d.Vectors,
		plans:    d.Plans,
		admins:   d.Admins,
		observer: d.Observer,
	}
	if c.admins == nil {
		c.admins = auth.NewStaticAdmins()
	}
	if c.observer == nil {
		c.observer = LogObserver{}
	}
	return c
}

func (c *Coordinator) SetDispatcher(d Dispatcher) { c.dispatcher = d }

// Register records an uploaded blob and schedules its indexing. The returned
// file is in PROCESSING, or FAILED when scheduling itself failed.
func (c *Coordinator) Register(ctx context.Context, req RegisterRequest) (*models.File, error) {
	if req.Key == "" || req.Name == "" {
		return nil, apperr.New(apperr.Invalid, "key and name are required")
	}
	if !storage.OwnsKey(req.OwnerID, req.Key) {
		return nil, apperr.New(apperr.Invalid, "key %s is not one of your uploads", req.Key)
	}

	_, err := c.files.GetByKey(ctx, req.Key)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.Conflict, "file with key %s already exists", req.Key)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("register file: %w", err)
	}

	url := req.URL
	if url == "" {
		url = c.objects.PublicURL(req.Key)
	}
	owner := req.OwnerID
	f := &models.File{
		ID:     uuid.NewString(),
		UserID: &owner,
		Key:    req.Key,
		URL:    url,
		Name:   req.Name,
	}
	if err := c.files.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("register file: %w", err)
	}
	slog.Info("file registered", "file_id", f.ID, "key", f.Key, "owner", owner)

	if c.dispatcher == nil {
		err = errors.New("no dispatcher configured")
	} else {
		err = c.dispatcher.Dispatch(ctx, Job{FileID: f.ID, OwnerID: owner})
	}
	if err != nil {
		slog.Error("dispatch ingestion", "file_id", f.ID, "error", err)
		c.finish(ctx, f.ID, models.StatusFailed)
		f.UploadStatus = models.StatusFailed
	}
	return f, nil
}

// Process runs the fetch, split, limit, embed and upsert steps for one
// file and moves it to its terminal status.
func (c *Coordinator) Process(ctx context.Context, job Job) error {
	log := slog.With("file_id", job.FileID)

	if err := c.index(ctx, job); err != nil {
		log.Error("ingestion failed", "error", err)
		c.finish(ctx, job.FileID, models.StatusFailed)
		return nil
	}

	c.finish(ctx, job.FileID, models.StatusSuccess)
	log.Info("ingestion succeeded")
	return nil
}

func (c *Coordinator) index(ctx context.Context, job Job) error {
	f, err := c.files.Get(ctx, job.FileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if f.UploadStatus != models.StatusProcessing {
		return fmt.Errorf("file is %s, not PROCESSING", f.UploadStatus)
	}

	blob, err := c.objects.Fetch(ctx, f.Key)
	if err != nil {
		return fmt.Errorf("fetch blob: %w", err)
	}
	doc, err := c.loader.Load(ctx, blob)
	if err != nil {
		return fmt.Errorf("split pages: %w", err)
	}

	if err := c.checkLimits(ctx, job.OwnerID, doc); err != nil {
		return err
	}

	pages := doc.NonEmpty()
	if len(pages) == 0 {
		return document.ErrNoText
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed pages: %w", err)
	}
	if len(vecs) != len(pages) {
		return fmt.Errorf("embed pages: got %d vectors for %d pages", len(vecs), len(pages))
	}

	docs := make([]vectorstore.Document, len(pages))
	for i, p := range pages {
		docs[i] = vectorstore.Document{Page: p.Number, Text: p.Text, Vector: vecs[i]}
	}
	if err := c.vectors.Upsert(ctx, f.ID, docs); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// checkLimits applies the owner's plan. Admins are never limited.
func (c *Coordinator) checkLimits(ctx context.Context, ownerID string, doc *document.Document) error {
	if c.admins.IsAdmin(ownerID) {
		return nil
	}
	sp, err := c.plans.Resolve(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	if n := doc.PageCount(); n > sp.Plan.PagesPerPDF {
		return fmt.Errorf("%d pages exceeds the %s plan limit of %d", n, sp.Plan.Name, sp.Plan.PagesPerPDF)
	}
	if limit := sp.Plan.MaxFileSizeBytes(); limit > 0 && int64(doc.Size) > limit {
		return fmt.Errorf("%d bytes exceeds the %s plan limit of %d", doc.Size, sp.Plan.Name, limit)
	}
	return nil
}

func (c *Coordinator) finish(ctx context.Context, fileID string, status models.UploadStatus) {
	ok, err := c.files.SetStatus(ctx, fileID, status)
	if err != nil {
		slog.Error("set file status", "file_id", fileID, "status", status, "error", err)
		return
	}
	if !ok {
		// deleted or already terminal while we worked
		slog.Warn("file status not updated", "file_id", fileID, "status", status)
		return
	}
	c.observer.OnTerminal(ctx, fileID, status)
}
