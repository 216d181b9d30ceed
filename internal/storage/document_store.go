package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// DocumentStore persists inbound invoice documents on the local filesystem.
// Documents are grouped per source message under the base directory:
// {baseDir}/{messageID}/{filename}. Callers keep the returned path in the
// database and use it later to serve the original PDF to reviewers.
type DocumentStore interface {
	// Save writes a document and returns the path it was stored at.
	Save(messageID, filename string, content []byte) (string, error)

	// Read returns the document at a previously returned path.
	Read(path string) ([]byte, error)
}

// LocalDocumentStore implements DocumentStore on the local filesystem
type LocalDocumentStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalDocumentStore creates a document store rooted at baseDir
func NewLocalDocumentStore(baseDir string, logger *zap.Logger) *LocalDocumentStore {
	return &LocalDocumentStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeName strips path separators and special characters so message IDs
// and filenames from external systems cannot escape the base directory.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// Save writes a document under the message's folder and returns its path
func (s *LocalDocumentStore) Save(messageID, filename string, content []byte) (string, error) {
	if messageID == "" {
		return "", fmt.Errorf("cannot save document: empty message ID")
	}
	if filename == "" {
		return "", fmt.Errorf("cannot save document: empty filename")
	}

	dir := filepath.Join(s.baseDir, sanitizeName(messageID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create document folder",
			zap.String("message_id", messageID),
			zap.Error(err))
		return "", fmt.Errorf("failed to create document folder: %w", err)
	}

	path := filepath.Join(dir, sanitizeName(filename))
	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Error("Failed to write document",
			zap.String("path", path),
			zap.Error(err))
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Debug("Document saved",
		zap.String("path", path),
		zap.Int("size", len(content)))

	return path, nil
}

// Read returns a stored document after checking the path stayed inside the
// base directory.
func (s *LocalDocumentStore) Read(path string) ([]byte, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document not found: %s", path)
		}
		s.logger.Error("Failed to read document",
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	return content, nil
}

func (s *LocalDocumentStore) validatePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if absPath != absBase && !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
