package types

// ClientType identifies the calling surface that opened a session.
// It carries no lifecycle semantics and is recorded as metadata only.
type ClientType string

const (
	ClientWebApp  ClientType = "webapp"
	ClientCopilot ClientType = "copilot"
	ClientTeams   ClientType = "teams"
	ClientSlack   ClientType = "slack"
	ClientDiscord ClientType = "discord"
)

// FileRecord describes one file persisted into a session's file store.
// Records are append-only: once registered they are never mutated.
type FileRecord struct {
	ID   string `json:"id"`
	Path string `json:"-"`
	Name string `json:"name"`
	Mime string `json:"type"`
	Size int64  `json:"size"`
}

// FileReference is the only handle handed back to callers after a file
// is persisted. The on-disk path never leaves the server.
type FileReference struct {
	ID string `json:"id"`
}
