package models

import "time"

// ContextType classifies the unit of user work being synchronized.
type ContextType string

const (
	ContextConversation ContextType = "conversation"
	ContextSearch       ContextType = "search"
	ContextWorkflow     ContextType = "workflow"
	ContextDocument     ContextType = "document"
)

// SyncState represents the per-device sync status of a context.
type SyncState string

const (
	SyncStateSynced   SyncState = "synced"
	SyncStatePending  SyncState = "pending"
	SyncStateConflict SyncState = "conflict"
)

// ContextMetadata carries the versioning and integrity data for a context.
type ContextMetadata struct {
	CreatedOn    string    `json:"createdOn"` // device id
	LastModified time.Time `json:"lastModified"`
	Version      int64     `json:"version"`
	Checksum     string    `json:"checksum"`
}

// DeviceSyncState records what a single device is known to hold.
type DeviceSyncState struct {
	Version  int64     `json:"version"`
	LastSync time.Time `json:"lastSync"`
	Status   SyncState `json:"status"`
}

// TransferRecord is one entry in a context's transfer history.
type TransferRecord struct {
	FromDevice string    `json:"fromDevice"`
	ToDevice   string    `json:"toDevice"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// CrossDeviceContext is the synchronizable unit of user work.
type CrossDeviceContext struct {
	ID              string                     `json:"id"`
	UserID          string                     `json:"userId"`
	Type            ContextType                `json:"type"`
	Data            []byte                     `json:"data"`
	Metadata        ContextMetadata            `json:"metadata"`
	DeviceStates    map[string]DeviceSyncState `json:"deviceStates"`
	TransferHistory []TransferRecord           `json:"transferHistory"`
}

// CreateContextRequest is the payload for creating a context.
type CreateContextRequest struct {
	UserID string      `json:"userId"`
	Type   ContextType `json:"type"`
	Data   []byte      `json:"data"`
}

// MutateContextRequest is the payload for updating a context's data.
type MutateContextRequest struct {
	Data []byte `json:"data"`
}

// EnqueueSyncRequest asks the scheduler to sync a context to targets.
type EnqueueSyncRequest struct {
	TargetDeviceIDs []string `json:"targetDeviceIds"`
	Priority        int      `json:"priority"`
}

// ReportStateRequest is a device's claim about the version it holds.
// Data optionally carries the device's own copy of the payload so a
// later conflict resolution can adopt or merge it.
type ReportStateRequest struct {
	DeviceID string `json:"deviceId"`
	Version  int64  `json:"version"`
	Data     []byte `json:"data,omitempty"`
}
