package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// fetchCell is a memoization slot for one side-band fetch name: unset until
// the first Get<Name> call, then holds the result (possibly nil) forever.
type fetchCell struct {
	set   bool
	value interface{}
}

// SideBandFetcher performs one side-band API call for a Resource of a given
// type. sideEffects optionally carries values to pre-populate other cache
// entries (e.g. computing iam_policy for a dataset also yields enough to
// derive dataset_policy); pre-population never overwrites an existing entry.
type SideBandFetcher func(ctx context.Context, r *Resource, client apiclient.Client) (value interface{}, sideEffects map[string]interface{}, err error)

// Resource is one crawled entity: opaque data, lineage, memoized side-band
// fetches, and a warning accumulator. Resource is touched by exactly one
// goroutine at a time — the one currently inside its Accept call — so no
// internal locking is required (SPEC_FULL.md §5).
type Resource struct {
	typeTag  string
	data     map[string]interface{}
	metadata map[string]interface{}
	isRoot   bool
	key      string

	parentStack     []*Resource
	stackInitalized bool

	warnings []string

	fetches     map[string]*fetchCell
	fetchers    map[string]SideBandFetcher
	fetchPairs  map[string]string
	dispatch    bool
	entry       *TypeEntry
	inventoryKey string

	fullNameOnce sync.Once
	fullName     string

	timestamp time.Time
}

// newResource constructs a Resource for a registry entry. key must already be
// derived (field/hash/composite) by the caller (registry.Construct).
func newResource(entry *TypeEntry, key string, data, metadata map[string]interface{}, isRoot bool) *Resource {
	return &Resource{
		typeTag:      entry.TypeTag,
		data:         data,
		metadata:     metadata,
		isRoot:       isRoot,
		key:          key,
		fetches:      make(map[string]*fetchCell),
		fetchers:     entry.SideBandFetchers,
		fetchPairs:   entry.SideBandPairs,
		dispatch:     entry.Dispatchable,
		entry:        entry,
		timestamp:    time.Now(),
	}
}

// Data returns the opaque data map. Callers must not mutate it during
// traversal.
func (r *Resource) Data() map[string]interface{} { return r.data }

// Metadata returns the opaque side-channel metadata from the API call.
func (r *Resource) Metadata() map[string]interface{} { return r.metadata }

// Key returns the resource's registry key, derived per SPEC_FULL.md §3.
func (r *Resource) Key() string { return r.key }

// Type returns the registered type tag.
func (r *Resource) Type() string { return r.typeTag }

// IsRoot reports whether this resource is the root of its crawl.
func (r *Resource) IsRoot() bool { return r.isRoot }

// InventoryKey returns the identifier assigned by the storage sink after
// ingestion, or "" if not yet set. Opaque to the engine.
func (r *Resource) InventoryKey() string { return r.inventoryKey }

// SetInventoryKey is called by the storage sink after persisting the
// resource.
func (r *Resource) SetInventoryKey(k string) { r.inventoryKey = k }

// Timestamp returns the wall-clock instant of resource construction.
func (r *Resource) Timestamp() time.Time { return r.timestamp }

// Parent returns self if IsRoot, the immediate parent if the stack is
// initialized and non-empty, or nil otherwise.
func (r *Resource) Parent() *Resource {
	if r.isRoot {
		return r
	}
	if len(r.parentStack) == 0 {
		return nil
	}
	return r.parentStack[len(r.parentStack)-1]
}

// Stack returns the ancestor chain from root to immediate parent. It fails
// with ErrNotInitialized if called before Accept bound the stack — guarding
// against a Resource escaping its call window (SPEC_FULL.md §9).
func (r *Resource) Stack() ([]*Resource, error) {
	if !r.stackInitalized {
		return nil, ErrNotInitialized
	}
	return r.parentStack, nil
}

// bindStack sets the parent chain exactly once, on entry to Accept.
func (r *Resource) bindStack(stack []*Resource) {
	r.parentStack = stack
	r.stackInitalized = true
}

// FullResourceName lazily computes parent.FullResourceName/type/key, with the
// root contributing an empty prefix. Idempotent once computed.
func (r *Resource) FullResourceName() string {
	r.fullNameOnce.Do(func() {
		self := r.typeTag + "/" + r.key
		if r.isRoot {
			r.fullName = self
			return
		}
		parent := r.Parent()
		if parent == nil || parent == r {
			r.fullName = self
			return
		}
		r.fullName = parent.FullResourceName() + "/" + self
	})
	return r.fullName
}

// AddWarning appends a human-readable warning string. Append-only.
func (r *Resource) AddWarning(msg string) {
	r.warnings = append(r.warnings, msg)
}

// Warnings returns all accumulated warnings as one joined string, or "" if
// none were recorded.
func (r *Resource) Warnings() string {
	return strings.Join(r.warnings, "; ")
}

// HasWarnings reports whether any warning was recorded.
func (r *Resource) HasWarnings() bool { return len(r.warnings) > 0 }

// ShouldDispatch reports whether this resource's subtree may be crawled on a
// dispatch-pool goroutine. Default false, overridden per-type in the
// registry (SPEC_FULL.md §4.E).
func (r *Resource) ShouldDispatch() bool { return r.dispatch }

// Get resolves a named side-band fetch, memoizing the result on first call
// per SPEC_FULL.md §4.F. On a fetch failure it records a warning and caches
// nil, so later callers never retry. A benign ApiExecutionError or
// ErrResourceNotSupported returns (nil, nil); any other error is returned to
// the first caller, and later calls return the cached nil with no error.
func (r *Resource) Get(ctx context.Context, name string, client apiclient.Client) (interface{}, error) {
	if cell, ok := r.fetches[name]; ok {
		return cell.value, nil
	}
	fetcher, ok := r.fetchers[name]
	if !ok {
		return nil, fmt.Errorf("inventory: resource type %q exposes no side-band fetch %q", r.typeTag, name)
	}
	value, sideEffects, err := fetcher(ctx, r, client)
	if err != nil {
		r.AddWarning(fmt.Sprintf("side-band fetch %q failed on %s: %v", name, r.FullResourceName(), err))
		if isBenign(err) || err == ErrResourceNotSupported {
			r.fetches[name] = &fetchCell{set: true, value: nil}
			return nil, nil
		}
		r.fetches[name] = &fetchCell{set: true, value: nil}
		return nil, err
	}
	r.fetches[name] = &fetchCell{set: true, value: value}
	for pairedName, pairedValue := range sideEffects {
		if _, already := r.fetches[pairedName]; already {
			continue
		}
		r.fetches[pairedName] = &fetchCell{set: true, value: pairedValue}
	}
	return value, nil
}

// fetchIsMemoized reports whether the memoization cell for name has been
// populated — used by tests to assert "at most one API call" (invariant 3).
func (r *Resource) fetchIsMemoized(name string) bool {
	_, ok := r.fetches[name]
	return ok
}
