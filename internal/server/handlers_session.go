package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/threadline-ai/threadline/internal/session"
	"github.com/threadline-ai/threadline/pkg/types"
)

// maxUploadBytes caps multipart uploads held in memory before
// spilling to disk.
const maxUploadBytes = 32 << 20

// uploadFile stores one multipart file upload in the session's file
// store and returns the file id. The id is the only handle given to
// the client; paths never leave the server.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, err := sess.PersistFile(r.Context(), header.Filename, mimeType, "", content)
	if err != nil {
		if errors.Is(err, session.ErrMissingFileSource) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to persist file")
		return
	}

	writeJSON(w, http.StatusOK, types.FileReference{ID: id})
}

type fileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mime string `json:"type"`
	Size int64  `json:"size"`
}

// listSessionFiles returns the file records of a session, without
// paths.
func (s *Server) listSessionFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	records := sess.Files()
	files := make([]fileInfo, 0, len(records))
	for _, record := range records {
		files = append(files, fileInfo{
			ID:   record.ID,
			Name: record.Name,
			Mime: record.Mime,
			Size: record.Size,
		})
	}
	writeJSON(w, http.StatusOK, files)
}

// requireSession resolves the sessionID route parameter to a live
// websocket session, writing the error response itself on failure.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session.WebsocketSession, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "sessionID required")
		return nil, false
	}
	sess := s.registry.GetByID(sessionID)
	if sess == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return nil, false
	}
	return sess, true
}
