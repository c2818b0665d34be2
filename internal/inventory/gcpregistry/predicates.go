// Package gcpregistry wires the generic inventory engine (internal/inventory)
// to GCP's concrete resource hierarchy: the type-specific overrides of
// SPEC_FULL.md §4.G. It is the "component G" half of the crawl engine — the
// declarative registry entries are data, but the predicates, key strategies,
// and side-band fetchers that make that data meaningful to GCP live here.
package gcpregistry

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
)

// projectEnumerable implements the "enumerable" predicate: a project's
// lifecycle state must be ACTIVE before its children are iterated.
func projectEnumerable(parent *inventory.Resource) bool {
	state, _ := parent.Data()["lifecycleState"].(string)
	return state == "ACTIVE"
}

// projectBillingEnabled reads cached billing-info; unknown/nil defaults to
// true to avoid over-gating (SPEC_FULL.md §4.G).
func projectBillingEnabled(parent *inventory.Resource) bool {
	cached, ok := parent.Data()["__billing_info_cache__"].(map[string]interface{})
	if !ok || cached == nil {
		return true
	}
	enabled, ok := cached["billingEnabled"].(bool)
	if !ok {
		return true
	}
	return enabled
}

// isAPIEnabledPredicate checks the membership set populated by
// GetEnabledAPIs; an empty set defaults to true.
func isAPIEnabledPredicate(apiName string) func(*inventory.Resource) bool {
	return func(parent *inventory.Resource) bool {
		cached, ok := parent.Data()["__enabled_apis_cache__"].(map[string]struct{})
		if !ok || len(cached) == 0 {
			return true
		}
		_, enabled := cached[apiName]
		return enabled
	}
}

// parseSelfLinkZoneLocation extracts zone and location from a slash-delimited
// selfLink, e.g. ".../projects/p/zones/us-central1-a/clusters/c". Missing
// fragments are not an error; they yield an empty config per SPEC_FULL.md
// §4.G's kubernetes-cluster rule.
func parseSelfLinkZoneLocation(selfLink string) (zone, location string) {
	parts := strings.Split(selfLink, "/")
	for i, p := range parts {
		if p == "zones" && i+1 < len(parts) {
			zone = parts[i+1]
			location = zone
		}
		if p == "locations" && i+1 < len(parts) {
			location = parts[i+1]
		}
	}
	return zone, location
}

// parseSelfLinkProject extracts the project ID from a slash-delimited
// selfLink, e.g. ".../projects/p/zones/us-central1-a/instanceGroups/g".
func parseSelfLinkProject(selfLink string) (project string) {
	parts := strings.Split(selfLink, "/")
	for i, p := range parts {
		if p == "projects" && i+1 < len(parts) {
			project = parts[i+1]
		}
	}
	return project
}

// dataprocRegionFromLabels reads the region out of a Dataproc cluster's
// label map; a missing label is downgraded to a warning, not an error.
func dataprocRegionFromLabels(ctx context.Context, r *inventory.Resource) (string, error) {
	labels, _ := r.Data()["labels"].(map[string]interface{})
	region, ok := labels["goog-dataproc-location"].(string)
	if !ok || region == "" {
		r.AddWarning(fmt.Sprintf("dataproc cluster %s missing goog-dataproc-location label", r.FullResourceName()))
		return "", nil
	}
	return region, nil
}

