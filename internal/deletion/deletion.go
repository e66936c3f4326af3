// Package deletion removes a file and everything derived from it: its
// vector namespace, its stored blob, and its rows (file and messages).
//
// Steps run in a fixed order and stop at the first failure. Nothing is
// compensated, so a failed run can leave the later systems untouched.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/storage"
	"github.com/nikhilbhutani/pdfmate/internal/store"
	"github.com/nikhilbhutani/pdfmate/internal/vectorstore"
)

const recordSystem = "database"

// Result is what the admin console shows. OK is false whenever the file was
// not fully removed.
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	System      string `json:"system,omitempty"`
	OK          bool   `json:"ok"`
}

type Coordinator struct {
	files   store.Files
	objects storage.ObjectStore
	vectors vectorstore.VectorStore
}

func NewCoordinator(files store.Files, objects storage.ObjectStore, vectors vectorstore.VectorStore) *Coordinator {
	return &Coordinator{files: files, objects: objects, vectors: vectors}
}

type step struct {
	system string
	run    func(ctx context.Context, f *models.File) error
}

func (c *Coordinator) vectorStep() step {
	return step{c.vectors.Name(), func(ctx context.Context, f *models.File) error {
		return c.vectors.DeleteNamespace(ctx, f.ID)
	}}
}

func (c *Coordinator) objectStep() step {
	return step{c.objects.Name(), func(ctx context.Context, f *models.File) error {
		return c.objects.Delete(ctx, f.Key)
	}}
}

func (c *Coordinator) recordStep() step {
	return step{recordSystem, func(ctx context.Context, f *models.File) error {
		return c.files.Delete(ctx, f.ID)
	}}
}

// run executes steps in order and returns the system of the first failure.
func run(ctx context.Context, f *models.File, steps []step) (string, error) {
	for _, s := range steps {
		if err := s.run(ctx, f); err != nil {
			slog.Error("delete step failed", "file_id", f.ID, "system", s.system, "error", err)
			return s.system, err
		}
		slog.Debug("delete step done", "file_id", f.ID, "system", s.system)
	}
	return "", nil
}

// PurgeEverywhere is the admin path: vectors, then blob, then records. It
// always returns a Result and never an error.
func (c *Coordinator) PurgeEverywhere(ctx context.Context, fileID string) Result {
	f, err := c.files.Get(ctx, fileID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Result{Title: "No such File", Description: "No file with Id: " + fileID}
	}
	if err != nil {
		slog.Error("load file for purge", "file_id", fileID, "error", err)
		return Result{
			Title:       "Error Deleting",
			Description: fmt.Sprintf("Error Deleting: %s from %s", fileID, recordSystem),
			System:      recordSystem,
		}
	}

	system, err := run(ctx, f, []step{c.vectorStep(), c.objectStep(), c.recordStep()})
	if err != nil {
		return Result{
			Title:       "Error Deleting",
			Description: fmt.Sprintf("Error Deleting: %s from %s", fileID, system),
			System:      system,
		}
	}

	slog.Info("file purged", "file_id", fileID, "name", f.Name)
	return Result{
		Title: "Deleted Successfully",
		Description: fmt.Sprintf("Deleted file %s from the %s, the %s and the %s, along with its chat.",
			f.Name, c.vectors.Name(), c.objects.Name(), recordSystem),
		OK: true,
	}
}

// DeleteOwned is the owner path: blob, then vectors, then records. Files the
// caller does not own look absent.
func (c *Coordinator) DeleteOwned(ctx context.Context, callerID, fileID string) (*models.File, error) {
	f, err := c.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	if !f.OwnedBy(callerID) {
		return nil, apperr.New(apperr.NotFound, "file %s not found", fileID)
	}

	system, err := run(ctx, f, []step{c.objectStep(), c.vectorStep(), c.recordStep()})
	if err != nil {
		return nil, apperr.ExternalFailure(system, err)
	}
	return f, nil
}
