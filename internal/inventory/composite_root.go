package inventory

import (
	"context"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// compositeRootTypeTag and compositeRootName name the synthetic resource
// FromRootIDs constructs when a crawl configures more than one root
// identifier (SPEC_FULL.md §6, Glossary: "composite root").
const (
	compositeRootTypeTag = "composite_root"
	compositeRootName    = "Composite Root"
)

// CompositeRootEntry returns the registry entry for the synthetic composite
// root. Its only content is the list of root identifiers it was built from
// ("composite_children") and an iterator that resolves each one exactly as
// FromRootID would standalone, yielding it as a non-root sub-root of the
// crawl. Callers register it once, alongside the provider-specific types,
// when building a Registry.
func CompositeRootEntry() *TypeEntry {
	return &TypeEntry{
		TypeTag:     compositeRootTypeTag,
		KeyStrategy: FieldKey("name"),
		ChildIteratorFactories: []IteratorFactory{
			func(parent *Resource, client apiclient.Client, reg *Registry) ChildIterator {
				return &compositeRootIterator{parent: parent, client: client, reg: reg}
			},
		},
	}
}

// compositeRootIterator yields each of the composite root's configured
// identifiers as a resolved, non-root Resource. It holds no state beyond its
// inputs, matching every other ChildIterator in this package.
type compositeRootIterator struct {
	parent *Resource
	client apiclient.Client
	reg    *Registry
}

func (it *compositeRootIterator) Iterate(ctx context.Context, yield func(*Resource) error) error {
	for _, rootID := range compositeChildren(it.parent) {
		child, err := resolveRoot(ctx, it.reg, it.client, rootID, false, it.parent)
		if err != nil {
			return err
		}
		if err := yield(child); err != nil {
			return err
		}
	}
	return nil
}

// compositeChildren reads "composite_children" off the composite root's data
// map, accepting either a []string (the shape FromRootIDs constructs
// in-process) or a []interface{} of strings (the shape a round-trip through
// a generic decoder, e.g. JSON, would produce).
func compositeChildren(parent *Resource) []string {
	switch v := parent.Data()["composite_children"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
