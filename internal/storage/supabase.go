package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/pdfmate/internal/config"
)

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	bucket     string
	maxBytes   int64
	httpClient *http.Client
}

func NewSupabaseStore(cfg config.StorageConfig, maxBytes int64) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimSuffix(cfg.SupabaseURL, "/") + "/storage/v1",
		serviceKey: cfg.SupabaseKey,
		bucket:     cfg.Bucket,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStore) Name() string { return "object store" }

func (s *SupabaseStore) objectURL(key string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, escapeKey(key))
}

func (s *SupabaseStore) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.httpClient.Do(req)
}

func (s *SupabaseStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", key, err)
	}
	defer resp.Body.Close()

	if isMissing(resp.StatusCode) {
		return nil, notFound(key)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download failed (%d)", resp.StatusCode)
	}

	data, err := readCapped(resp.Body, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	defer resp.Body.Close()

	if isMissing(resp.StatusCode) {
		return notFound(key)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, escapeKey(key))
}

// PresignUpload asks Supabase for a signed upload URL. The returned path is
// relative to the storage API root.
func (s *SupabaseStore) PresignUpload(ctx context.Context, key, _ string) (string, error) {
	url := fmt.Sprintf("%s/object/upload/sign/%s/%s", s.baseURL, s.bucket, escapeKey(key))
	resp, err := s.do(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("sign upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sign upload failed (%d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode signed url: %w", err)
	}
	if strings.HasPrefix(out.URL, "http") {
		return out.URL, nil
	}
	return s.baseURL + out.URL, nil
}

// Supabase answers 400 with a "not_found" body for missing objects on
// some versions; both codes mean absent here.
func isMissing(code int) bool {
	return code == http.StatusNotFound || code == http.StatusBadRequest
}
