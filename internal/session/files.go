package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/threadline-ai/threadline/internal/event"
	"github.com/threadline-ai/threadline/pkg/types"
)

// ErrMissingFileSource is returned by PersistFile when neither a
// source path nor inline content is supplied.
var ErrMissingFileSource = errors.New("either a source path or content must be provided")

// PersistFile stores a file in the session's directory and registers
// it under a fresh file id. Exactly one of srcPath and content must be
// supplied: a path is copied verbatim, content is written as given.
// The recorded size is measured from the written file, not taken from
// the caller. Only the file id is returned; callers never see paths.
func (s *Session) PersistFile(ctx context.Context, name, mimeType, srcPath string, content []byte) (string, error) {
	if srcPath == "" && content == nil {
		return "", ErrMissingFileSource
	}

	if err := os.MkdirAll(s.FilesDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create files directory: %w", err)
	}

	fileID := ulid.Make().String()
	filePath := filepath.Join(s.FilesDir(), fileID+extensionForMime(mimeType))

	if srcPath != "" {
		if err := copyFile(srcPath, filePath); err != nil {
			return "", err
		}
	} else {
		if err := os.WriteFile(filePath, content, 0o644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat written file: %w", err)
	}

	record := types.FileRecord{
		ID:   fileID,
		Path: filePath,
		Name: name,
		Mime: mimeType,
		Size: info.Size(),
	}

	s.mu.Lock()
	s.files[fileID] = record
	s.mu.Unlock()

	event.Publish(event.Event{
		Type: event.FilePersisted,
		Data: event.FilePersistedData{SessionID: s.ID, File: record},
	})

	return fileID, nil
}

// PersistText stores inline text content as UTF-8 bytes.
func (s *Session) PersistText(ctx context.Context, name, mimeType, content string) (string, error) {
	return s.PersistFile(ctx, name, mimeType, "", []byte(content))
}

// extensionForMime returns a best-effort file extension for the MIME
// type, empty when none can be inferred.
func extensionForMime(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return out.Close()
}
