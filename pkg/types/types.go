// Package types holds the value types shared across the transfer engine:
// the persisted Transfer row, the in-memory TransferItem derived from it,
// and the small enumerations that describe backend kind, status, and
// conflict policy.
package types

import "fmt"

// BackendKind identifies which storage backend a path belongs to.
type BackendKind string

const (
	BackendLocal    BackendKind = "local"
	BackendS3       BackendKind = "s3"
	BackendS3Compat BackendKind = "s3_compat"
)

// Valid reports whether k is one of the recognized backend kinds.
func (k BackendKind) Valid() bool {
	switch k {
	case BackendLocal, BackendS3, BackendS3Compat:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a persisted Transfer row. Values are
// totally ordered under normal flow: Pending < Queued < Transferring <
// {Error, Completed}. The only backward transition is the stop-induced
// reset of Queued/Transferring back to Pending.
type Status int

const (
	StatusPending Status = iota
	StatusQueued
	StatusTransferring
	StatusError
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusQueued:
		return "QUEUED"
	case StatusTransferring:
		return "TRANSFERRING"
	case StatusError:
		return "ERROR"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Terminal reports whether s is a terminal state (no further transitions
// happen to the row outside of an engine-stop reset).
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusCompleted
}

// ConflictPolicy controls what happens when a destination path already
// exists at transfer time. The string values are the exact identifiers
// used across the engine's command surface.
type ConflictPolicy string

const (
	PolicyOverwrite ConflictPolicy = "overwrite"
	PolicySkip      ConflictPolicy = "skip"
	PolicyHash      ConflictPolicy = "hash"
	PolicySize      ConflictPolicy = "size"
	PolicyNewer     ConflictPolicy = "newer"
	PolicyRename    ConflictPolicy = "rename"
)

// Valid reports whether p is one of the recognized conflict policy tokens.
func (p ConflictPolicy) Valid() bool {
	switch p {
	case PolicyOverwrite, PolicySkip, PolicyHash, PolicySize, PolicyNewer, PolicyRename:
		return true
	default:
		return false
	}
}

// DefaultPriority is substituted whenever a persisted or requested
// priority is zero or out of range.
const DefaultPriority = 3

// MinPriority and MaxPriority bound the valid priority range; 1 is
// highest priority.
const (
	MinPriority = 1
	MaxPriority = 5
)

// NormalizePriority clamps p to the valid range, substituting
// DefaultPriority for zero or out-of-range values.
func NormalizePriority(p int) int {
	if p < MinPriority || p > MaxPriority {
		return DefaultPriority
	}
	return p
}

// TransferRecord is the persisted row (§3 of the spec): durable state
// owned exclusively by the Transfer Store. Only the Store mutates it;
// every other component works with copies.
type TransferRecord struct {
	ID              int64
	Source          string
	Destination     string
	Size            int64
	SourceKind      BackendKind
	DestinationKind BackendKind
	Priority        int
	Status          Status
	StartTime       string // ISO-8601, empty when unset
	EndTime         string // ISO-8601, empty when unset
	ErrorMessage    string
}

// TransferItem is the in-memory, feed-time materialization of a
// TransferRecord (§3). Its lifetime is bounded by one feed-then-execute
// cycle.
type TransferItem struct {
	ID             int64
	Source         Adapter
	Destination    Adapter
	Size           int64
	Priority       int
	Status         Status
	Started        string
	Completed      string
	Processed      int64
	Message        string
	ConflictPolicy ConflictPolicy
}

// Less orders items by (priority ascending, id ascending) — lower
// priority integer means higher scheduling priority, per spec.md §4.4.
func (i *TransferItem) Less(other *TransferItem) bool {
	if i.Priority != other.Priority {
		return i.Priority < other.Priority
	}
	return i.ID < other.ID
}

// Account is the opaque record describing a configured storage
// destination: {kind, root, region, endpoint, access_key, nickname}. The
// secret material lives in the credential vault, looked up by AccessKey.
type Account struct {
	Kind      BackendKind
	Root      string
	Region    string
	Endpoint  string
	AccessKey string
	Nickname  string
}
