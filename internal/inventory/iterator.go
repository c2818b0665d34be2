package inventory

import (
	"context"
	"fmt"

	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// ChildIterator lazily produces the children of a parent Resource. Iterate
// drives the sequence to exhaustion, invoking yield once per child in
// API-return order; yield returning an error stops iteration immediately.
// An iterator holds no state beyond the inputs its factory was given.
type ChildIterator interface {
	Iterate(ctx context.Context, yield func(*Resource) error) error
}

// IteratorFactory instantiates a ChildIterator for the given parent, using
// client to reach the API and reg to construct child Resources of the
// registered type.
type IteratorFactory func(parent *Resource, client apiclient.Client, reg *Registry) ChildIterator

// ArgKeys extracts API-call arguments from a parent Resource's data map, in
// declaration order, for a Simple iterator.
type ArgKeys []string

// Predicate gates a Simple iterator: if it returns false, the iterator
// produces an empty sequence without calling the API at all (e.g. "compute
// API enabled", "project is ACTIVE").
type Predicate func(parent *Resource) bool

// ListMethod lists the children of parent, invoking apiclient.PageFunc once
// per raw (data, metadata) item. args are the values extracted per ArgKeys.
type ListMethod func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error

// SimpleIteratorSpec declares a §4.C "simple" iterator: most child kinds use
// this shape.
type SimpleIteratorSpec struct {
	ChildType string
	ArgKeys   ArgKeys
	Predicate Predicate
	List      ListMethod
}

// Factory returns the IteratorFactory for this spec.
func (s SimpleIteratorSpec) Factory() IteratorFactory {
	return func(parent *Resource, client apiclient.Client, reg *Registry) ChildIterator {
		return &simpleIterator{spec: s, parent: parent, client: client, reg: reg}
	}
}

type simpleIterator struct {
	spec   SimpleIteratorSpec
	parent *Resource
	client apiclient.Client
	reg    *Registry
}

func (it *simpleIterator) Iterate(ctx context.Context, yield func(*Resource) error) error {
	if it.spec.Predicate != nil && !it.spec.Predicate(it.parent) {
		return nil
	}
	args := make([]string, len(it.spec.ArgKeys))
	for i, key := range it.spec.ArgKeys {
		v, ok := it.parent.Data()[key]
		if !ok {
			return fmt.Errorf("inventory: simple iterator for %q missing arg field %q on parent %s",
				it.spec.ChildType, key, it.parent.FullResourceName())
		}
		args[i] = fmt.Sprintf("%v", v)
	}
	err := it.spec.List(ctx, it.client, args, func(item apiclient.Item) error {
		child, cerr := it.reg.Construct(it.spec.ChildType, item.Data, item.Metadata, false, it.parent)
		if cerr != nil {
			return cerr
		}
		return yield(child)
	})
	if err == ErrResourceNotSupported {
		return nil
	}
	return err
}

// AugmentingIteratorSpec declares a §4.C "augmenting" iterator: after an
// inner Simple-shaped listing, one extra per-item fetch enriches the data
// map before the child is handed off. Enrichment failures are swallowed,
// yielding the un-enriched item. gcpregistry's instance_group entry is the
// worked example the spec names: a bare instance-group listing, enriched
// per item with its member URLs.
type AugmentingIteratorSpec struct {
	Inner   SimpleIteratorSpec
	Enrich  func(ctx context.Context, client apiclient.Client, data map[string]interface{}) error
}

// Factory returns the IteratorFactory for this spec.
func (s AugmentingIteratorSpec) Factory() IteratorFactory {
	return func(parent *Resource, client apiclient.Client, reg *Registry) ChildIterator {
		return &augmentingIterator{spec: s, parent: parent, client: client, reg: reg}
	}
}

type augmentingIterator struct {
	spec   AugmentingIteratorSpec
	parent *Resource
	client apiclient.Client
	reg    *Registry
}

func (it *augmentingIterator) Iterate(ctx context.Context, yield func(*Resource) error) error {
	inner := it.spec.Inner.Factory()(it.parent, it.client, it.reg)
	return inner.Iterate(ctx, func(child *Resource) error {
		if err := it.spec.Enrich(ctx, it.client, child.Data()); err != nil {
			child.AddWarning(fmt.Sprintf("enrichment failed for %s: %v", child.FullResourceName(), err))
		}
		return yield(child)
	})
}
