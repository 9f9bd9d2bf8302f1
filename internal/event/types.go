package event

import "github.com/threadline-ai/threadline/pkg/types"

// SessionConnectedData is the data for session.connected events.
type SessionConnectedData struct {
	SessionID  string           `json:"sessionID"`
	SocketID   string           `json:"socketID"`
	ThreadID   string           `json:"threadID"`
	ClientType types.ClientType `json:"clientType"`
}

// SessionResumedData is the data for session.resumed events, published
// when an existing session is re-keyed to a new socket.
type SessionResumedData struct {
	SessionID   string `json:"sessionID"`
	OldSocketID string `json:"oldSocketID"`
	NewSocketID string `json:"newSocketID"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// FilePersistedData is the data for file.persisted events.
type FilePersistedData struct {
	SessionID string           `json:"sessionID"`
	File      types.FileRecord `json:"file"`
}

// SubsessionOpenedData is the data for subsession.opened events.
type SubsessionOpenedData struct {
	SessionID string `json:"sessionID"`
	Name      string `json:"name"`
}

// SubsessionClosedData is the data for subsession.closed events.
type SubsessionClosedData struct {
	SessionID string `json:"sessionID"`
	Name      string `json:"name"`
}

// UserPersistedData is the data for user.persisted events, published
// the first time an ephemeral identity is written to the user store.
type UserPersistedData struct {
	Identifier string `json:"identifier"`
}
