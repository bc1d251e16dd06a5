package topology

import (
	"context"
	"testing"
)

type staticLookup struct {
	definitions []Definition
}

func (s staticLookup) ListEnvironments(context.Context) ([]Definition, error) {
	return s.definitions, nil
}

func TestBuildTreeResolvesNodesInAnyOrder(t *testing.T) {
	t.Parallel()

	// Children listed before their parents must still resolve.
	tree, err := BuildTree(Definition{
		SubscriptionID: "sub-1",
		Name:           "prod",
		Nodes: []NodeDefinition{
			{ElementID: "chk-1", Kind: KindCheck, Name: "probe", ParentID: "comp-1"},
			{ElementID: "comp-1", Kind: KindComponent, Name: "api", ParentID: "act-1"},
			{ElementID: "act-1", Kind: KindAction, Name: "checkout", ParentID: "svc-1"},
			{ElementID: "svc-1", Kind: KindService, Name: "shop"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, id := range []string{"sub-1", "svc-1", "act-1", "comp-1", "chk-1"} {
		if !tree.HasElement(id) {
			t.Fatalf("element %s missing", id)
		}
	}
	node, _ := tree.Element("svc-1")
	if node.ParentID != "sub-1" {
		t.Fatalf("empty parent did not default to root: %q", node.ParentID)
	}
}

func TestBuildTreeRejectsUnresolvableParents(t *testing.T) {
	t.Parallel()

	_, err := BuildTree(Definition{
		SubscriptionID: "sub-1",
		Nodes: []NodeDefinition{
			{ElementID: "chk-1", Kind: KindCheck, ParentID: "ghost"},
		},
	})
	if err == nil {
		t.Fatalf("expected error for unresolvable parent")
	}
}

func TestRegistryLoadAndLifecycle(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	err := registry.Load(context.Background(), staticLookup{definitions: []Definition{
		{SubscriptionID: "sub-b", Name: "beta"},
		{SubscriptionID: "sub-a", Name: "alpha"},
	}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ids := registry.SubscriptionIDs()
	if len(ids) != 2 || ids[0] != "sub-a" || ids[1] != "sub-b" {
		t.Fatalf("ids = %v", ids)
	}

	if _, ok := registry.Tree("sub-a"); !ok {
		t.Fatalf("sub-a missing")
	}
	if !registry.Remove("sub-a") {
		t.Fatalf("remove reported missing tree")
	}
	if registry.Remove("sub-a") {
		t.Fatalf("double remove succeeded")
	}
	if _, ok := registry.Tree("sub-a"); ok {
		t.Fatalf("removed tree still registered")
	}
}
