package gcpregistry

import (
	"context"

	"github.com/cloudkeep/inventory-crawler/internal/inventory"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/apiclient"
)

// Build constructs the process-wide immutable registry for the GCP resource
// hierarchy: organizations/folders/projects and the project-scoped child
// kinds this repository covers, plus the provider-agnostic composite root
// used to crawl several configured roots in one run. Called once at
// startup; the returned *inventory.Registry is never mutated afterward.
func Build() *inventory.Registry {
	b := inventory.NewRegistryBuilder()

	b.Register(inventory.CompositeRootEntry())
	registerOrganization(b)
	registerFolder(b)
	registerProject(b)
	registerComputeInstance(b)
	registerInstanceGroup(b)
	registerGCSBucket(b)
	registerBigQueryDataset(b)
	registerServiceAccount(b)
	registerKubernetesCluster(b)
	registerKubernetesNamespace(b)
	registerKubernetesPod(b)
	registerDataprocCluster(b)
	registerGroup(b)
	registerGroupMember(b)
	registerOrgPolicyConstraint(b)

	return b.Build()
}

func registerOrganization(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:      "organization",
		KeyStrategy:  inventory.FieldKey("name"),
		Dispatchable: false,
		DependsOn:    nil,
		RootFetch:    organizationRootFetch,
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy":    iamPolicyFetcher("organization"),
			"org_policy":    orgPolicyFetcher("organization"),
			"access_policy": accessPolicyFetcher,
		},
		ChildIteratorFactories: []inventory.IteratorFactory{
			inventory.SimpleIteratorSpec{
				ChildType: "folder",
				ArgKeys:   inventory.ArgKeys{"name"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterFolders(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "project",
				ArgKeys:   inventory.ArgKeys{"name"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterProjects(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "group",
				ArgKeys:   inventory.ArgKeys{},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterGroups(ctx, fn)
				},
			}.Factory(),
		},
	})
}

func registerFolder(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:      "folder",
		KeyStrategy:  inventory.FieldKey("name"),
		Dispatchable: true, // folders are a dispatch point per SPEC_FULL.md §4.E
		DependsOn:    []string{"organization", "folder"},
		RootFetch:    folderRootFetch,
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy": iamPolicyFetcher("folder"),
			"org_policy": orgPolicyFetcher("folder"),
		},
		ChildIteratorFactories: []inventory.IteratorFactory{
			inventory.SimpleIteratorSpec{
				ChildType: "folder",
				ArgKeys:   inventory.ArgKeys{"name"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterFolders(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "project",
				ArgKeys:   inventory.ArgKeys{"name"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterProjects(ctx, args[0], fn)
				},
			}.Factory(),
		},
	})
}

func registerProject(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:      "project",
		KeyStrategy:  inventory.FieldKey("projectId"),
		Dispatchable: true,
		DependsOn:    []string{"organization", "folder"},
		RootFetch:    projectRootFetch,
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy":    iamPolicyFetcher("project"),
			"org_policy":    orgPolicyFetcher("project"),
			"billing_info":  billingInfoFetcher,
			"enabled_apis":  enabledAPIsFetcher,
		},
		ChildIteratorFactories: []inventory.IteratorFactory{
			inventory.SimpleIteratorSpec{
				ChildType: "compute_instance",
				ArgKeys:   inventory.ArgKeys{"projectId"},
				Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("compute.googleapis.com")),
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterComputeInstances(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "gcs_bucket",
				ArgKeys:   inventory.ArgKeys{"projectId"},
				Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("storage.googleapis.com")),
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterGCSBuckets(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "bigquery_dataset",
				ArgKeys:   inventory.ArgKeys{"projectId"},
				Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("bigquery.googleapis.com")),
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterBigQueryDatasets(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "service_account",
				ArgKeys:   inventory.ArgKeys{"projectId"},
				Predicate: projectEnumerable,
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterServiceAccounts(ctx, args[0], fn)
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "kubernetes_cluster",
				ArgKeys:   inventory.ArgKeys{"projectId"},
				Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("container.googleapis.com")),
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterKubernetesClusters(ctx, args[0], func(item apiclient.Item) error {
						if item.Data != nil {
							item.Data["__project_id__"] = args[0]
						}
						return fn(item)
					})
				},
			}.Factory(),
			inventory.SimpleIteratorSpec{
				ChildType: "dataproc_cluster",
				ArgKeys:   inventory.ArgKeys{"projectId", "defaultRegion"},
				Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("dataproc.googleapis.com")),
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterDataprocClusters(ctx, args[0], args[1], fn)
				},
			}.Factory(),
			inventory.AugmentingIteratorSpec{
				Inner: inventory.SimpleIteratorSpec{
					ChildType: "instance_group",
					ArgKeys:   inventory.ArgKeys{"projectId"},
					Predicate: andPredicates(projectEnumerable, isAPIEnabledPredicate("compute.googleapis.com")),
					List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
						return client.IterInstanceGroups(ctx, args[0], fn)
					},
				},
				Enrich: enrichInstanceGroupMembers,
			}.Factory(),
		},
	})
}

// andPredicates combines predicates with logical AND, short-circuiting on
// the first false.
func andPredicates(preds ...inventory.Predicate) inventory.Predicate {
	return func(parent *inventory.Resource) bool {
		for _, p := range preds {
			if !p(parent) {
				return false
			}
		}
		return true
	}
}

func registerComputeInstance(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "compute_instance",
		KeyStrategy: inventory.FieldKey("id"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy": iamPolicyFetcher("compute_instance"),
		},
	})
}

// registerInstanceGroup wires the augmenting-iterator example SPEC_FULL.md
// §4.C names directly: instance groups are listed bare, then each one's
// member URLs are fetched separately and folded into its data map before
// registerProject's iterator hands it off.
func registerInstanceGroup(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "instance_group",
		KeyStrategy: inventory.FieldKey("id"),
		DependsOn:   []string{"project"},
	})
}

// enrichInstanceGroupMembers is the Enrich callback for the instance_group
// augmenting iterator: it derives the group's project and zone from its
// selfLink (AggregatedList does not scope the listing call per zone) and
// stashes the fetched member URLs onto the data map under "members".
func enrichInstanceGroupMembers(ctx context.Context, client apiclient.Client, data map[string]interface{}) error {
	selfLink, _ := data["selfLink"].(string)
	project := parseSelfLinkProject(selfLink)
	zone, _ := parseSelfLinkZoneLocation(selfLink)
	name, _ := data["name"].(string)

	item, err := client.FetchInstanceGroupMemberURLs(ctx, project, zone, name)
	if err != nil {
		return err
	}
	data["members"] = item.Data["members"]
	return nil
}

func registerGCSBucket(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "gcs_bucket",
		KeyStrategy: inventory.FieldKey("id"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy": iamPolicyFetcher("gcs_bucket"),
			"gcs_policy": gcsPolicyFetcher,
		},
	})
}

func registerBigQueryDataset(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "bigquery_dataset",
		KeyStrategy: inventory.FieldKey("datasetId"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy":      datasetIAMAndPolicyFetcher("dataset_policy"),
			"dataset_policy":  datasetIAMAndPolicyFetcher("iam_policy"),
		},
		SideBandPairs: map[string]string{
			"iam_policy":     "dataset_policy",
			"dataset_policy": "iam_policy",
		},
	})
}

func registerServiceAccount(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "service_account",
		KeyStrategy: inventory.FieldKey("uniqueId"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy": iamPolicyFetcher("service_account"),
		},
	})
}

func registerKubernetesCluster(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "kubernetes_cluster",
		KeyStrategy: inventory.HashKey("selfLink"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"service_config": serviceConfigFetcher,
		},
		ChildIteratorFactories: []inventory.IteratorFactory{
			kubernetesNamespaceIteratorFactory(),
		},
	})
}

func registerKubernetesNamespace(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "kubernetes_namespace",
		KeyStrategy: inventory.KubeUID(),
		DependsOn:   []string{"kubernetes_cluster"},
		ChildIteratorFactories: []inventory.IteratorFactory{
			kubernetesPodIteratorFactory(),
		},
	})
}

func registerKubernetesPod(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "kubernetes_pod",
		KeyStrategy: inventory.KubeUID(),
		DependsOn:   []string{"kubernetes_namespace"},
	})
}

func registerDataprocCluster(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "dataproc_cluster",
		KeyStrategy: inventory.FieldKey("clusterName"),
		DependsOn:   []string{"project"},
		SideBandFetchers: map[string]inventory.SideBandFetcher{
			"iam_policy": dataprocIAMPolicyFetcher,
		},
	})
}

func registerGroup(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:      "group",
		KeyStrategy:  inventory.FieldKey("id"),
		Dispatchable: true, // "top-level groups" per SPEC_FULL.md §4.E
		ChildIteratorFactories: []inventory.IteratorFactory{
			inventory.SimpleIteratorSpec{
				ChildType: "group_member",
				ArgKeys:   inventory.ArgKeys{"id"},
				List: func(ctx context.Context, client apiclient.Client, args []string, fn apiclient.PageFunc) error {
					return client.IterGroupMembers(ctx, args[0], fn)
				},
			}.Factory(),
		},
	})
}

func registerGroupMember(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "group_member",
		KeyStrategy: inventory.FieldKey("id"),
		DependsOn:   []string{"group"},
	})
}

// registerOrgPolicyConstraint demonstrates the composite-key regime
// (SPEC_FULL.md §3): a per-constraint policy resource that exists only
// relative to its parent hierarchy node.
func registerOrgPolicyConstraint(b *inventory.RegistryBuilder) {
	b.Register(&inventory.TypeEntry{
		TypeTag:     "crm_org_policy",
		KeyStrategy: inventory.CompositeKey("constraint"),
		DependsOn:   []string{"organization", "folder", "project"},
	})
}
