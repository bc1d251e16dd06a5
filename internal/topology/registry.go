package topology

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// NodeDefinition describes one element of a loaded environment.
// Params: identity, kind, classification, and parent adjacency.
// Returns: load unit produced by the masterdata lookup collaborator.
type NodeDefinition struct {
	ElementID     string `json:"elementId"`
	Kind          Kind   `json:"kind"`
	Name          string `json:"name"`
	ComponentType string `json:"componentType,omitempty"`
	ParentID      string `json:"parentId"`
}

// Definition describes one environment and its full node list.
// Params: environment identity and nodes in arbitrary order.
// Returns: load unit for building one tree.
type Definition struct {
	SubscriptionID string           `json:"subscriptionId"`
	Name           string           `json:"name"`
	Nodes          []NodeDefinition `json:"nodes"`
}

// Lookup is the masterdata collaborator the core reads topology from.
// Params: context for the load call.
// Returns: environment definitions; CRUD on them stays outside the core.
type Lookup interface {
	ListEnvironments(ctx context.Context) ([]Definition, error)
}

// Registry holds one tree per environment.
// Params: trees keyed by subscription id.
// Returns: environment lookup for intake, escalation, and queries;
// operations on different environments run fully in parallel.
type Registry struct {
	mu    sync.RWMutex
	trees map[string]*Tree
}

// NewRegistry creates an empty environment registry.
// Params: none.
// Returns: initialized registry.
func NewRegistry() *Registry {
	return &Registry{trees: make(map[string]*Tree)}
}

// Load replaces registry content from the lookup collaborator.
// Params: context and masterdata lookup.
// Returns: error when a definition cannot be materialized into a tree.
func (r *Registry) Load(ctx context.Context, lookup Lookup) error {
	definitions, err := lookup.ListEnvironments(ctx)
	if err != nil {
		return fmt.Errorf("list environments: %w", err)
	}
	trees := make(map[string]*Tree, len(definitions))
	for _, definition := range definitions {
		tree, err := BuildTree(definition)
		if err != nil {
			return err
		}
		trees[definition.SubscriptionID] = tree
	}
	r.mu.Lock()
	r.trees = trees
	r.mu.Unlock()
	return nil
}

// BuildTree materializes one environment definition into a tree.
// Params: definition with nodes in arbitrary order.
// Returns: tree, or error for unresolvable parents.
func BuildTree(definition Definition) (*Tree, error) {
	tree := NewTree(definition.SubscriptionID, definition.Name)
	pending := append([]NodeDefinition(nil), definition.Nodes...)
	for len(pending) > 0 {
		progressed := false
		next := pending[:0]
		for _, node := range pending {
			parentID := node.ParentID
			if parentID == "" {
				parentID = definition.SubscriptionID
			}
			if !tree.HasElement(parentID) {
				next = append(next, node)
				continue
			}
			if err := tree.AddNode(node.ElementID, node.Kind, node.Name, node.ComponentType, parentID); err != nil {
				return nil, fmt.Errorf("environment %q: %w", definition.SubscriptionID, err)
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("environment %q: %d nodes with unresolvable parents", definition.SubscriptionID, len(next))
		}
		pending = next
	}
	return tree, nil
}

// Register inserts or replaces one environment tree.
// Params: tree to register.
// Returns: none.
func (r *Registry) Register(tree *Tree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trees[tree.SubscriptionID()] = tree
}

// Remove deletes one environment tree.
// Params: environment subscription id.
// Returns: true when a tree was removed.
func (r *Registry) Remove(subscriptionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trees[subscriptionID]; !ok {
		return false
	}
	delete(r.trees, subscriptionID)
	return true
}

// Tree returns the tree of one environment.
// Params: environment subscription id.
// Returns: tree and found flag.
func (r *Registry) Tree(subscriptionID string) (*Tree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree, ok := r.trees[subscriptionID]
	return tree, ok
}

// SubscriptionIDs lists registered environments in deterministic order.
// Params: none.
// Returns: sorted subscription id list.
func (r *Registry) SubscriptionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.trees))
	for id := range r.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
