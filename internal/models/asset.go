// Package models holds the plain data structures persisted by a crawl run,
// independent of both the traversal engine (internal/inventory) and the
// storage backend (internal/repository).
package models

import "time"

// CrawlRun is one invocation of the engine against a set of root IDs.
type CrawlRun struct {
	ID          string
	RootIDs     []string
	Status      string // "running", "succeeded", "failed"
	StartedAt   time.Time
	FinishedAt  *time.Time
	ErrorMessage string
}

// CrawledResource is one persisted Resource: the flattened, storage-ready
// projection of internal/inventory.Resource plus its lineage.
type CrawledResource struct {
	RunID            string
	FullResourceName string
	Type             string
	Key              string
	ParentFullName   string
	Data             []byte // protobuf wire bytes of a structpb.Struct
	Metadata         []byte // JSON-encoded, may be nil
	Timestamp        time.Time
}

// Warning is one accumulated warning reported against a resource during a
// run — either a side-band fetch failure, an iteration failure, or a
// degraded root fetch (SPEC_FULL.md §7).
type Warning struct {
	RunID            string
	FullResourceName string
	Message          string
	RecordedAt       time.Time
}
