package inventory

import (
	"context"
	"fmt"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// TypeEntry is one process-wide, immutable registry record: what a type is
// keyed by, which child iterators it owns, and which parent types it depends
// on. SPEC_FULL.md §9 re-architects the source's dynamic subclass factories
// into this declarative shape — behavior is data, not code.
type TypeEntry struct {
	// TypeTag is the registry key (e.g. "organization", "compute_instance").
	TypeTag string

	// KeyStrategy derives this type's key from its data map (and parent, for
	// composite keys).
	KeyStrategy KeyStrategy

	// ChildIteratorFactories is the ordered list of iterator factories
	// instantiated when crawling this type's children. Order is part of the
	// contract (invariant 6: non-dispatched siblings are emitted in
	// iterator-declaration order).
	ChildIteratorFactories []IteratorFactory

	// DependsOn lists type tags that must be visited before any instance of
	// this type. Advisory metadata for external tooling; the engine itself
	// enforces ordering structurally via traversal, not by consulting this
	// list.
	DependsOn []string

	// Dispatchable is this type's default ShouldDispatch() policy.
	Dispatchable bool

	// SideBandFetchers maps a side-band name (e.g. "iam_policy") to the
	// fetcher that resolves it for resources of this type.
	SideBandFetchers map[string]SideBandFetcher

	// SideBandPairs documents which side-band names this type's fetchers
	// pre-populate as a side effect (for documentation/testing only; the
	// actual pre-population happens via SideBandFetcher's sideEffects
	// return value).
	SideBandPairs map[string]string

	// RootFetch, when non-nil, lets FromRootID construct this type directly
	// from a root identifier (organization, folder, project only).
	RootFetch RootFetcher
}

// RootFetcher fetches a root-level resource (organization, folder, project)
// directly by key, used by FromRootID. On API failure it must return an
// error; FromRootID is responsible for the placeholder fallback.
type RootFetcher func(ctx context.Context, client apiclient.Client, key string) (data, metadata map[string]interface{}, err error)

// Registry is the process-wide immutable type table. Built once via
// NewRegistryBuilder().Build() and never mutated afterward.
type Registry struct {
	entries map[string]*TypeEntry
}

// RegistryBuilder accumulates entries before Build() freezes them. Using a
// builder keeps "construct, then freeze, then expose read-only" explicit,
// per the re-architecture note in SPEC_FULL.md §9.
type RegistryBuilder struct {
	entries map[string]*TypeEntry
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{entries: make(map[string]*TypeEntry)}
}

// Register adds (or replaces) the entry for entry.TypeTag. Panics if
// TypeTag is empty — a programmer error, not a runtime condition.
func (b *RegistryBuilder) Register(entry *TypeEntry) *RegistryBuilder {
	if entry.TypeTag == "" {
		panic("inventory: registry entry must declare a non-empty TypeTag")
	}
	b.entries[entry.TypeTag] = entry
	return b
}

// Build freezes the builder into an immutable Registry.
func (b *RegistryBuilder) Build() *Registry {
	frozen := make(map[string]*TypeEntry, len(b.entries))
	for k, v := range b.entries {
		frozen[k] = v
	}
	return &Registry{entries: frozen}
}

// Lookup returns the entry for typeTag. Lookup never fails for a type the
// registry was built with; calling it with an unknown tag is a programmer
// error and panics, matching the "fatal; surface immediately" policy for
// registry misses in SPEC_FULL.md §7.
func (r *Registry) Lookup(typeTag string) *TypeEntry {
	entry, ok := r.entries[typeTag]
	if !ok {
		panic(fmt.Sprintf("inventory: unknown resource type %q (registry programmer error)", typeTag))
	}
	return entry
}

// Has reports whether typeTag is registered, without panicking.
func (r *Registry) Has(typeTag string) bool {
	_, ok := r.entries[typeTag]
	return ok
}

// Construct builds a Resource of typeTag from data/metadata, deriving its key
// via the type's KeyStrategy. parent is required for composite keys and may
// be nil otherwise.
func (r *Registry) Construct(typeTag string, data, metadata map[string]interface{}, isRoot bool, parent *Resource) (*Resource, error) {
	entry := r.Lookup(typeTag)
	key, err := entry.KeyStrategy.derive(data, parent)
	if err != nil {
		return nil, fmt.Errorf("inventory: deriving key for type %q: %w", typeTag, err)
	}
	return newResource(entry, key, data, metadata, isRoot), nil
}

// rootFetcherFor returns the RootFetcher registered for typeTag, or nil if
// the type has none (only organization/folder/project do).
func (r *Registry) rootFetcherFor(typeTag string) RootFetcher {
	entry, ok := r.entries[typeTag]
	if !ok {
		return nil
	}
	return entry.RootFetch
}
