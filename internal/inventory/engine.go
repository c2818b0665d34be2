package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// Visitor is the consumer the traversal engine drives. A visitor must be
// internally thread-safe: the engine calls it from multiple dispatch-pool
// goroutines concurrently with no additional locking of its own
// (SPEC_FULL.md §5).
type Visitor interface {
	// Visit persists resource. Called exactly once per resource, strictly
	// before any of its descendants.
	Visit(ctx context.Context, resource *Resource) error
	// Client returns the API client iterators and side-band fetches use.
	Client() apiclient.Client
	// Dispatch enqueues a dispatchable subtree's continuation.
	Dispatch(fn func(ctx context.Context) error)
	// OnChildError reports a failure or accumulated warning for the named
	// resource. One-way; the engine does not interpret the return value
	// because there is none.
	OnChildError(fullResourceName string, errOrWarning error)
	// Config returns the run's configuration, notably ExcludedResources.
	Config() *Config
}

// Config carries the crawl-run parameters the engine consults directly.
type Config struct {
	// ExcludedResources is a set of "<type>/<key>" strings. Projects
	// additionally match on "project/<projectNumber>".
	ExcludedResources map[string]struct{}
}

// excludes reports whether r matches the configured exclusion set.
func (c *Config) excludes(r *Resource) bool {
	if c == nil || len(c.ExcludedResources) == 0 {
		return false
	}
	if _, ok := c.ExcludedResources[r.Type()+"/"+r.Key()]; ok {
		return true
	}
	if r.Type() == "project" {
		if number, ok := r.Data()["projectNumber"]; ok {
			if _, excluded := c.ExcludedResources[fmt.Sprintf("project/%v", number)]; excluded {
				return true
			}
		}
	}
	return false
}

// Accept is the traversal engine's entry point for one Resource: the state
// machine of SPEC_FULL.md §4.D. It visits self, drives each registered child
// iterator, and recurses (inline or dispatched) into each yielded child.
func (r *Resource) Accept(ctx context.Context, visitor Visitor, reg *Registry, incomingStack []*Resource) error {
	r.bindStack(incomingStack)

	if visitor.Config().excludes(r) {
		return nil
	}

	if err := visitor.Visit(ctx, r); err != nil {
		r.AddWarning(fmt.Sprintf("visit failed for %s: %v", r.FullResourceName(), err))
	}

	entry := reg.Lookup(r.typeTag)
	newStack := append(append([]*Resource{}, incomingStack...), r)

	for _, factory := range entry.ChildIteratorFactories {
		iter := factory(r, visitor.Client(), reg)
		iterErr := iter.Iterate(ctx, func(child *Resource) error {
			if child.ShouldDispatch() {
				visitor.Dispatch(func(dctx context.Context) error {
					child.TryAccept(dctx, visitor, reg, newStack)
					return nil
				})
				return nil
			}
			child.TryAccept(ctx, visitor, reg, newStack)
			return nil
		})
		if iterErr != nil {
			if isBenign(iterErr) {
				continue
			}
			r.AddWarning(fmt.Sprintf("iteration failed on %s: %v", r.FullResourceName(), iterErr))
		}
	}

	if r.HasWarnings() {
		visitor.OnChildError(r.FullResourceName(), fmt.Errorf("%s", r.Warnings()))
	}
	return nil
}

// TryAccept wraps a child's full Accept in a recover-and-report block: on
// any panic or returned error, it calls visitor.OnChildError and the child's
// descendants below the failing node are skipped. The parent's own
// traversal continues unaffected (SPEC_FULL.md §4.D step 6).
func (r *Resource) TryAccept(ctx context.Context, visitor Visitor, reg *Registry, stack []*Resource) {
	defer func() {
		if rec := recover(); rec != nil {
			visitor.OnChildError(r.FullResourceName(), fmt.Errorf("panic during accept: %v", rec))
		}
	}()
	if err := r.Accept(ctx, visitor, reg, stack); err != nil {
		visitor.OnChildError(r.FullResourceName(), err)
	}
}

// rootPrefixes maps a root-id prefix to the registry type tag it resolves
// to, per SPEC_FULL.md §4.D "Initial state".
var rootPrefixes = map[string]string{
	"organizations": "organization",
	"folders":       "folder",
	"projects":      "project",
}

// FromRootID constructs the root Resource for a crawl from a single root
// identifier. It inspects rootID's prefix, dispatches to the corresponding
// type's RootFetch override, and on failure synthesizes a placeholder
// resource carrying a recorded warning rather than aborting.
func FromRootID(ctx context.Context, reg *Registry, client apiclient.Client, rootID string) (*Resource, error) {
	return resolveRoot(ctx, reg, client, rootID, true, nil)
}

// FromRootIDs constructs the top-level Resource for a crawl configured with
// one or more root identifiers. A single identifier resolves directly via
// FromRootID. Multiple identifiers are wrapped in a synthetic composite root
// (SPEC_FULL.md §6): a resource carrying the configured identifiers under
// "composite_children", whose own child iterator resolves and yields each
// one as a non-root sub-root — so several independent hierarchies are
// crawled, and visited, in a single run rather than by looping over roots
// outside the engine.
func FromRootIDs(ctx context.Context, reg *Registry, client apiclient.Client, rootIDs []string) (*Resource, error) {
	if len(rootIDs) == 1 {
		return FromRootID(ctx, reg, client, rootIDs[0])
	}
	data := map[string]interface{}{
		"name":               compositeRootName,
		"composite_children": rootIDs,
	}
	return reg.Construct(compositeRootTypeTag, data, nil, true, nil)
}

// resolveRoot does the actual prefix-to-type resolution FromRootID exposes
// for a genuine crawl root. isRoot and parent let the composite-root
// iterator reuse it for its own children, which resolve identically but are
// constructed as non-root resources hanging off the composite root.
func resolveRoot(ctx context.Context, reg *Registry, client apiclient.Client, rootID string, isRoot bool, parent *Resource) (*Resource, error) {
	parts := strings.SplitN(rootID, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRootPrefix, rootID)
	}
	prefix, key := parts[0], parts[1]
	typeTag, ok := rootPrefixes[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRootPrefix, rootID)
	}

	entry := reg.Lookup(typeTag)
	if entry.RootFetch == nil {
		return nil, fmt.Errorf("inventory: type %q has no root fetch override", typeTag)
	}

	data, metadata, err := entry.RootFetch(ctx, client, key)
	if err != nil {
		// The placeholder is keyed by the root id's own key part: its data
		// carries only "name", which the type's key field may not be.
		placeholderData := map[string]interface{}{"name": rootID}
		root := newResource(entry, key, placeholderData, nil, isRoot)
		root.AddWarning(fmt.Sprintf("Unable to fetch %s from API: %v", titleCaseType(typeTag), err))
		return root, nil
	}

	return reg.Construct(typeTag, data, metadata, isRoot, parent)
}

// titleCaseType renders a type tag like "project" as "Project" for warning
// messages (S2: "Unable to fetch Project from API").
func titleCaseType(typeTag string) string {
	if typeTag == "" {
		return typeTag
	}
	return strings.ToUpper(typeTag[:1]) + typeTag[1:]
}
