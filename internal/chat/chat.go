// Package chat answers questions about an indexed PDF from the pages that
// best match the question and the recent conversation.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/embedding"
	"github.com/nikhilbhutani/pdfmate/internal/llm"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/store"
	"github.com/nikhilbhutani/pdfmate/internal/vectorstore"
	"github.com/nikhilbhutani/pdfmate/pkg/tokenizer"
)

const systemPrompt = `You answer questions about a PDF document the user uploaded.
Use the document excerpts below and the previous conversation. If the excerpts
do not contain the answer, say that you don't know. Do not make up an answer.`

const (
	maxMessageLen     = 4000
	excerptTokens     = 600
	promptTokenBudget = 6000
)

type Reply struct {
	Question models.Message      `json:"question"`
	Answer   models.Message      `json:"answer"`
	Sources  []vectorstore.Match `json:"sources"`
}

type Service struct {
	files        store.Files
	messages     store.Messages
	embedder     embedding.Embedder
	vectors      vectorstore.VectorStore
	gateway      llm.Gateway
	historySize  int
	contextPages int
}

func NewService(st *store.Store, embedder embedding.Embedder, vectors vectorstore.VectorStore, gw llm.Gateway, historySize, contextPages int) *Service {
	return &Service{
		files:        st.Files,
		messages:     st.Messages,
		embedder:     embedder,
		vectors:      vectors,
		gateway:      gw,
		historySize:  historySize,
		contextPages: contextPages,
	}
}

// turn is a question that has been stored and is ready for the model.
type turn struct {
	file     *models.File
	question models.Message
	sources  []vectorstore.Match
	prompt   []llm.Message
}

func (s *Service) prepare(ctx context.Context, callerID, fileID, text string) (*turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.Invalid, "message is empty")
	}
	if len(text) > maxMessageLen {
		return nil, apperr.New(apperr.Invalid, "message exceeds %d characters", maxMessageLen)
	}

	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	if !f.OwnedBy(callerID) {
		return nil, apperr.New(apperr.NotFound, "file %s not found", fileID)
	}
	if f.UploadStatus != models.StatusSuccess {
		return nil, apperr.New(apperr.Conflict, "file %s is %s", fileID, f.UploadStatus)
	}

	q := models.Message{
		ID:            uuid.NewString(),
		FileID:        &f.ID,
		UserID:        &callerID,
		IsUserMessage: true,
		Text:          text,
	}
	if err := s.messages.Create(ctx, &q); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, apperr.Wrap(apperr.External, err, "embed question")
	}
	sources, err := s.vectors.Search(ctx, f.ID, vec, s.contextPages)
	if err != nil {
		return nil, apperr.Wrap(apperr.External, err, "search %s", s.vectors.Name())
	}

	history, err := s.messages.Recent(ctx, f.ID, s.historySize+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return &turn{
		file:     f,
		question: q,
		sources:  sources,
		prompt:   buildPrompt(history, q, sources),
	}, nil
}

// buildPrompt lays out system, history oldest first, then the question with
// its excerpts. history is newest first and may include q itself. Excerpts
// are cut to excerptTokens each; history is dropped oldest first once the
// prompt would pass promptTokenBudget.
func buildPrompt(history []models.Message, q models.Message, sources []vectorstore.Match) []llm.Message {
	var b strings.Builder
	b.WriteString("Document excerpts:\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "\n[Page %d]\n%s\n", src.Page, tokenizer.Truncate(src.Text, excerptTokens))
	}
	fmt.Fprintf(&b, "\nQuestion: %s", q.Text)
	question := b.String()

	budget := promptTokenBudget - tokenizer.Count(systemPrompt) - tokenizer.Count(question)
	var kept []llm.Message
	for _, m := range history {
		if m.ID == q.ID {
			continue
		}
		cost := tokenizer.Count(m.Text)
		if cost > budget {
			break
		}
		budget -= cost
		role := llm.RoleAssistant
		if m.IsUserMessage {
			role = llm.RoleUser
		}
		kept = append(kept, llm.Message{Role: role, Content: m.Text})
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	for i := len(kept) - 1; i >= 0; i-- {
		msgs = append(msgs, kept[i])
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
}

func (s *Service) answer(ctx context.Context, t *turn, text string) (models.Message, error) {
	a := models.Message{
		ID:     uuid.NewString(),
		FileID: &t.file.ID,
		UserID: t.question.UserID,
		Text:   text,
	}
	if err := s.messages.Create(ctx, &a); err != nil {
		return a, fmt.Errorf("store answer: %w", err)
	}
	return a, nil
}

// Send answers text and stores both sides of the exchange.
func (s *Service) Send(ctx context.Context, callerID, fileID, text string) (*Reply, error) {
	t, err := s.prepare(ctx, callerID, fileID, text)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Chat(ctx, llm.ChatRequest{Messages: t.prompt, Temperature: 0})
	if err != nil {
		return nil, apperr.Wrap(apperr.External, err, "generate answer")
	}

	a, err := s.answer(ctx, t, resp.Content)
	if err != nil {
		return nil, err
	}
	return &Reply{Question: t.question, Answer: a, Sources: t.sources}, nil
}

// Stream is Send with the answer delivered in chunks. The full answer is
// stored once the stream ends, even if the client went away.
func (s *Service) Stream(ctx context.Context, callerID, fileID, text string) (<-chan llm.StreamChunk, error) {
	t, err := s.prepare(ctx, callerID, fileID, text)
	if err != nil {
		return nil, err
	}

	in, err := s.gateway.ChatStream(ctx, llm.ChatRequest{Messages: t.prompt, Temperature: 0})
	if err != nil {
		return nil, apperr.Wrap(apperr.External, err, "generate answer")
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var full strings.Builder
		failed := false
		for chunk := range in {
			if chunk.Error != nil {
				failed = true
			}
			full.WriteString(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}
		if failed || full.Len() == 0 {
			return
		}
		if _, err := s.answer(context.WithoutCancel(ctx), t, full.String()); err != nil {
			slog.Error("store streamed answer", "file_id", t.file.ID, "error", err)
		}
	}()
	return out, nil
}
