package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/threadline-ai/threadline/pkg/types"
)

// Options carries the construction arguments shared by both session
// variants.
type Options struct {
	// ID is the session id. Generated when empty.
	ID string

	// ThreadID resumes a prior conversation when set. A fresh thread
	// id is generated otherwise.
	ThreadID string

	// Identity is the resolved user, or nil for anonymous sessions.
	Identity types.Identity

	ClientType types.ClientType

	// UserEnv holds user-scoped environment variables. Immutable
	// after construction.
	UserEnv map[string]string

	// ChatProfile is the profile selected before the session started.
	ChatProfile string

	// FilesBase is the directory under which this session's file
	// directory is created, one subdirectory per session id.
	FilesBase string
}

// Session is the durable unit of conversation state shared by the
// HTTP and websocket variants. The identifying fields are set at
// construction and never change; chat settings and the file registry
// are guarded by the session's own mutex.
type Session struct {
	ID string

	// ThreadID names the durable conversation. Immutable.
	ThreadID string

	// ThreadIDToResume is set only when the client asked to resume a
	// prior thread; it then equals ThreadID.
	ThreadIDToResume string

	Identity    types.Identity
	ClientType  types.ClientType
	UserEnv     map[string]string
	ChatProfile string

	mu           sync.Mutex
	chatSettings map[string]any
	files        map[string]types.FileRecord
	filesBase    string
}

func newSession(opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = ulid.Make().String()
	}
	s := &Session{
		ID:           id,
		ClientType:   opts.ClientType,
		Identity:     opts.Identity,
		UserEnv:      opts.UserEnv,
		ChatProfile:  opts.ChatProfile,
		chatSettings: map[string]any{},
		files:        map[string]types.FileRecord{},
		filesBase:    opts.FilesBase,
	}
	if s.UserEnv == nil {
		s.UserEnv = map[string]string{}
	}
	if opts.ThreadID != "" {
		s.ThreadID = opts.ThreadID
		s.ThreadIDToResume = opts.ThreadID
	} else {
		s.ThreadID = ulid.Make().String()
	}
	return s
}

// FilesDir returns the session's file directory path. The directory
// is created lazily by PersistFile and may not exist.
func (s *Session) FilesDir() string {
	return filepath.Join(s.filesBase, s.ID)
}

// SetChatSettings replaces the session's chat settings.
func (s *Session) SetChatSettings(settings map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings == nil {
		settings = map[string]any{}
	}
	s.chatSettings = settings
}

// ChatSettings returns a copy of the session's chat settings.
func (s *Session) ChatSettings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.chatSettings))
	for k, v := range s.chatSettings {
		out[k] = v
	}
	return out
}

// Files returns the session's file records.
func (s *Session) Files() []types.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.FileRecord, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	return out
}

// File returns the record for a file id.
func (s *Session) File(id string) (types.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	return f, ok
}

// Metadata returns the session's serializable metadata: chat settings,
// chat profile, and client type, cleaned and size-capped.
func (s *Session) Metadata() map[string]any {
	s.mu.Lock()
	metadata := make(map[string]any, len(s.chatSettings)+2)
	metadata["chat_settings"] = s.chatSettings
	metadata["chat_profile"] = s.ChatProfile
	metadata["client_type"] = string(s.ClientType)
	s.mu.Unlock()
	return CleanMetadata(metadata, MaxMetadataBytes)
}

// removeFiles deletes the session's file directory. Safe to call when
// the directory was never created.
func (s *Session) removeFiles() error {
	return os.RemoveAll(s.FilesDir())
}

// HTTPSession is the stateless-per-request session variant, used when
// the server is consumed through plain HTTP without a websocket. It
// owns no socket, no deferred queues, and no subsessions.
type HTTPSession struct {
	*Session
}

// NewHTTPSession creates a per-request session.
func NewHTTPSession(opts Options) *HTTPSession {
	return &HTTPSession{Session: newSession(opts)}
}

// Delete removes the session's file directory. Called at the end of
// the owning request.
func (s *HTTPSession) Delete(ctx context.Context) error {
	return s.removeFiles()
}
