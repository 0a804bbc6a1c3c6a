package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no storage endpoint is set
var ErrNotConfigured = errors.New("object storage is not configured")

// SupabaseStorage uploads property media to a Supabase Storage bucket
type SupabaseStorage struct {
	URL            string
	ServiceRoleKey string
	BucketName     string
	client         *http.Client
}

// NewSupabaseStorage creates a storage client for bucketName
func NewSupabaseStorage(url, serviceRoleKey, bucketName string) *SupabaseStorage {
	return &SupabaseStorage{
		URL:            strings.TrimRight(url, "/"),
		ServiceRoleKey: serviceRoleKey,
		BucketName:     bucketName,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether uploads can be attempted
func (s *SupabaseStorage) Configured() bool {
	return s.URL != "" && s.ServiceRoleKey != "" && s.BucketName != ""
}

// Upload stores the content under a random name that keeps the original
// extension and returns its public URL.
func (s *SupabaseStorage) Upload(ctx context.Context, originalName, contentType string, content io.Reader) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	filename := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.URL, s.BucketName, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, content)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceRoleKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return s.PublicURL(filename), nil
}

// PublicURL returns the public address of an object in the bucket
func (s *SupabaseStorage) PublicURL(filename string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.URL, s.BucketName, filename)
}

// Delete removes an object from the bucket
func (s *SupabaseStorage) Delete(ctx context.Context, filename string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.URL, s.BucketName, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceRoleKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
