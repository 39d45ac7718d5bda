package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedProofType is returned when an upload's extension is not an
// accepted proof format.
var ErrUnsupportedProofType = errors.New("unsupported proof file type")

// allowedProofExts are the receipt formats officers can review.
var allowedProofExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".pdf":  {},
}

// ProofStorage persists payment-proof images on disk under a base directory.
// The rest of the system treats the returned reference as opaque.
type ProofStorage struct {
	baseDir string
	maxSize int64
}

// NewProofStorage ensures the base directory exists and returns a handle.
func NewProofStorage(baseDir string, maxSize int64) (*ProofStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads/payments"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &ProofStorage{baseDir: baseDir, maxSize: maxSize}, nil
}

// SaveProof streams an uploaded proof to disk and returns its opaque
// reference. The stored name embeds the request id and a random suffix so
// re-uploads never clobber prior evidence.
func (s *ProofStorage) SaveProof(requestID int64, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := allowedProofExts[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProofType, ext)
	}
	name := fmt.Sprintf("payment_%d_%s_%s%s",
		requestID,
		time.Now().UTC().Format("20060102150405"),
		uuid.NewString()[:8],
		ext,
	)
	path := filepath.Join(s.baseDir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	limit := io.Reader(r)
	if s.maxSize > 0 {
		limit = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(file, limit)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write proof file: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		_ = os.Remove(path)
		return "", fmt.Errorf("proof exceeds %d bytes", s.maxSize)
	}

	return "/uploads/payments/" + name, nil
}

// Open returns a read-only handle for a stored proof reference.
func (s *ProofStorage) Open(ref string) (*os.File, error) {
	name := filepath.Base(ref)
	file, err := os.Open(filepath.Join(s.baseDir, name))
	if err != nil {
		return nil, fmt.Errorf("open proof file: %w", err)
	}
	return file, nil
}

// Delete removes a stored proof if present.
func (s *ProofStorage) Delete(ref string) error {
	name := filepath.Base(ref)
	if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete proof file: %w", err)
	}
	return nil
}
