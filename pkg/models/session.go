package models

import "time"

// SyncedData aggregates the references a session has synchronized.
type SyncedData struct {
	ConversationIDs []string          `json:"conversationIds"`
	SearchIDs       []string          `json:"searchIds"`
	Preferences     map[string]string `json:"preferences"`
	HistoryIDs      []string          `json:"historyIds"`
	BookmarkIDs     []string          `json:"bookmarkIds"`
}

// SyncSession pairs a user with a set of devices for a bounded period.
type SyncSession struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	Devices       []string       `json:"devices"` // ordered, never empty while active
	PrimaryDevice string         `json:"primaryDevice"`
	StartTime     time.Time      `json:"startTime"`
	LastActivity  time.Time      `json:"lastActivity"`
	IsActive      bool           `json:"isActive"`
	SyncedData    SyncedData     `json:"syncedData"`
	Conflicts     []SyncConflict `json:"conflicts"`
}

// ConflictType classifies what kind of state diverged.
type ConflictType string

const (
	ConflictTypeData       ConflictType = "data"
	ConflictTypePreference ConflictType = "preference"
	ConflictTypeState      ConflictType = "state"
)

// ResolutionState tracks how a conflict was (or will be) resolved.
type ResolutionState string

const (
	ResolutionManual  ResolutionState = "manual"
	ResolutionAuto    ResolutionState = "auto"
	ResolutionPending ResolutionState = "pending"
)

// Resolution is the collaborator-chosen strategy for settling a conflict.
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveRemote Resolution = "remote"
	ResolveMerge  Resolution = "merge"
)

// ConflictData holds the divergent snapshots of both sides.
type ConflictData struct {
	Local     []byte    `json:"local"`
	Remote    []byte    `json:"remote"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncConflict records a disagreement between two or more devices'
// believed-synced versions of the same context.
type SyncConflict struct {
	ID          string          `json:"id"`
	ContextID   string          `json:"contextId"`
	Type        ConflictType    `json:"type"`
	Description string          `json:"description"`
	Devices     []string        `json:"devices"` // the >=2 devices in disagreement
	Data        ConflictData    `json:"data"`
	Resolution  ResolutionState `json:"resolution"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
}

// CreateSessionRequest is the payload for starting a sync session.
type CreateSessionRequest struct {
	UserID    string   `json:"userId"`
	DeviceIDs []string `json:"deviceIds"`
}

// ResolveConflictRequest is the payload for resolving a conflict.
type ResolveConflictRequest struct {
	Resolution Resolution `json:"resolution"`
}
