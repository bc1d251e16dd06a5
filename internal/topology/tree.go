package topology

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"providence/internal/domain"
)

// Kind is the hierarchy level of one topology node.
// Params: environment/service/action/component/check closed set.
// Returns: structural level used for validation and display.
type Kind string

const (
	// KindEnvironment is the tree root.
	KindEnvironment Kind = "environment"
	// KindService groups actions below the environment.
	KindService Kind = "service"
	// KindAction groups components below a service.
	KindAction Kind = "action"
	// KindComponent groups checks below an action.
	KindComponent Kind = "component"
	// KindCheck is a leaf hosting one or more alert streams.
	KindCheck Kind = "check"
)

// Node is one topology element inside the arena.
// Params: stable element id, kind, classification, and adjacency ids.
// Returns: arena entry; parent/children are plain ids, never pointers.
type Node struct {
	ElementID     string
	Kind          Kind
	Name          string
	ComponentType string
	ParentID      string
	ChildIDs      []string

	// state is the aggregated element state: worst state among direct
	// children (and own streams for check nodes).
	state domain.ElementState
}

// NodeSnapshot is an immutable copy of one node with its aggregated state.
// Params: copied node fields and element state.
// Returns: read view safe to use outside the tree lock.
type NodeSnapshot struct {
	ElementID     string              `json:"elementId"`
	Kind          Kind                `json:"kind"`
	Name          string              `json:"name"`
	ComponentType string              `json:"componentType,omitempty"`
	ParentID      string              `json:"parentId,omitempty"`
	ChildIDs      []string            `json:"childIds,omitempty"`
	State         domain.ElementState `json:"state"`
}

// StreamSnapshot is an immutable copy of one leaf stream state.
// Params: stream key, element state, and dwell bookkeeping.
// Returns: read view used by the escalation scan.
type StreamSnapshot struct {
	Key       domain.StreamKey
	State     domain.ElementState
	Since     time.Time
	Escalated bool
}

// streamState is the tracked state of one leaf stream.
// Params: current element state plus the instant it was entered.
// Returns: per-stream bookkeeping for ordering and escalation dwell.
type streamState struct {
	state domain.ElementState
	since time.Time
}

// Tree holds one environment's topology and current state.
// Params: node arena keyed by element id and stream map keyed by stream key.
// Returns: per-environment unit of mutual exclusion; all mutations are
// serialized by the tree lock, reads work on snapshots.
type Tree struct {
	mu             sync.RWMutex
	subscriptionID string
	name           string
	rootID         string
	nodes          map[string]*Node
	streams        map[domain.StreamKey]*streamState
	byElement      map[string][]domain.StreamKey
}

// NewTree creates a tree with its environment root node.
// Params: environment subscription id and display name.
// Returns: tree holding only the root.
func NewTree(subscriptionID, name string) *Tree {
	rootID := subscriptionID
	root := &Node{
		ElementID: rootID,
		Kind:      KindEnvironment,
		Name:      name,
		state:     domain.ElementState{State: domain.StateOk},
	}
	return &Tree{
		subscriptionID: subscriptionID,
		name:           name,
		rootID:         rootID,
		nodes:          map[string]*Node{rootID: root},
		streams:        make(map[domain.StreamKey]*streamState),
		byElement:      make(map[string][]domain.StreamKey),
	}
}

// SubscriptionID returns the environment subscription id.
// Params: none.
// Returns: stable environment key.
func (t *Tree) SubscriptionID() string {
	return t.subscriptionID
}

// Name returns the environment display name.
// Params: none.
// Returns: environment name.
func (t *Tree) Name() string {
	return t.name
}

// AddNode inserts one node under an existing parent.
// Params: element id, kind, name, component type, and parent element id.
// Returns: error for duplicate id or unknown parent.
func (t *Tree) AddNode(elementID string, kind Kind, name, componentType, parentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[elementID]; exists {
		return fmt.Errorf("element %q already exists", elementID)
	}
	parent, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("parent element %q not found", parentID)
	}
	t.nodes[elementID] = &Node{
		ElementID:     elementID,
		Kind:          kind,
		Name:          name,
		ComponentType: componentType,
		ParentID:      parentID,
		state:         domain.ElementState{State: domain.StateOk},
	}
	parent.ChildIDs = append(parent.ChildIDs, elementID)
	return nil
}

// RemoveNode removes one node and its whole subtree.
// Params: element id; the root cannot be removed.
// Returns: element ids of all removed nodes and their changed ancestors.
func (t *Tree) RemoveNode(elementID string) ([]NodeSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elementID == t.rootID {
		return nil, fmt.Errorf("cannot remove environment root %q", elementID)
	}
	node, ok := t.nodes[elementID]
	if !ok {
		return nil, fmt.Errorf("element %q not found", elementID)
	}

	t.removeSubtreeLocked(elementID)
	parent := t.nodes[node.ParentID]
	children := parent.ChildIDs[:0]
	for _, id := range parent.ChildIDs {
		if id != elementID {
			children = append(children, id)
		}
	}
	parent.ChildIDs = children
	return t.aggregatePathLocked(node.ParentID), nil
}

func (t *Tree) removeSubtreeLocked(elementID string) {
	node := t.nodes[elementID]
	if node == nil {
		return
	}
	for _, childID := range node.ChildIDs {
		t.removeSubtreeLocked(childID)
	}
	for _, key := range t.byElement[elementID] {
		delete(t.streams, key)
	}
	delete(t.byElement, elementID)
	delete(t.nodes, elementID)
}

// ApplyResult is the outcome of one leaf state application.
// Params: change flags and affected node snapshots.
// Returns: material for transition recording and push events.
type ApplyResult struct {
	// Changed is true when the stream state actually transitioned.
	Changed bool
	// OutOfOrder is true when the update was dropped as stale.
	OutOfOrder bool
	// Leaf is the stream state after application.
	Leaf StreamSnapshot
	// LeafNode is the check node hosting the stream.
	LeafNode NodeSnapshot
	// ChangedAncestors lists ancestors whose aggregated state transitioned,
	// ordered leaf-side first up to the root.
	ChangedAncestors []NodeSnapshot
	// Previous is the stream state before this apply. RevertLeafState uses
	// it when the transition commit fails and the alert must stay retryable.
	Previous StreamSnapshot
	// StreamExisted is false when this apply created the stream entry.
	StreamExisted bool
}

// ApplyLeafState applies one reported state to a stream and repropagates.
// Params: stream key, new state with timestamps and custom fields, and the
// escalated marker (true only for synthetic escalation transitions).
// Returns: apply result, or *OrphanAlertError for an unknown element.
func (t *Tree) ApplyLeafState(key domain.StreamKey, next domain.ElementState) (ApplyResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := t.nodes[key.ElementID]
	if !ok {
		return ApplyResult{}, &domain.OrphanAlertError{SubscriptionID: t.subscriptionID, ElementID: key.ElementID}
	}

	stream, exists := t.streams[key]
	if !exists {
		stream = &streamState{
			state: domain.ElementState{State: domain.StateOk},
			since: next.SourceTimestamp,
		}
		t.streams[key] = stream
		t.byElement[key.ElementID] = append(t.byElement[key.ElementID], key)
	}
	previousSnapshot := StreamSnapshot{
		Key:       key,
		State:     cloneElementState(stream.state),
		Since:     stream.since,
		Escalated: stream.state.Escalated,
	}

	// Out-of-order updates are dropped: replay and reordering safety.
	if exists && next.SourceTimestamp.Before(stream.state.SourceTimestamp) {
		return ApplyResult{
			OutOfOrder: true,
			Leaf:       StreamSnapshot{Key: key, State: stream.state, Since: stream.since, Escalated: stream.state.Escalated},
			LeafNode:   t.snapshotNodeLocked(node),
		}, nil
	}

	previous := stream.state.State
	if next.State == domain.StateOk {
		next.Escalated = false
	} else if stream.state.Escalated && !next.Escalated && !next.State.WorseThan(stream.state.State) {
		// An unresolved agent report keeps an existing escalation in force
		// until the stream returns to ok.
		next.State = stream.state.State
		next.Escalated = true
		next.TriggeredByElementID = stream.state.TriggeredByElementID
		next.TriggeredByCheckID = stream.state.TriggeredByCheckID
		next.TriggeredByAlertName = stream.state.TriggeredByAlertName
	}
	changed := next.State != previous
	if changed {
		stream.since = next.SourceTimestamp
	}
	if next.TriggeredByElementID == "" {
		next.TriggeredByElementID = key.ElementID
		next.TriggeredByCheckID = key.CheckID
		next.TriggeredByAlertName = key.AlertName
	}
	stream.state = next

	result := ApplyResult{
		Changed:       changed,
		Leaf:          StreamSnapshot{Key: key, State: stream.state, Since: stream.since, Escalated: stream.state.Escalated},
		Previous:      previousSnapshot,
		StreamExisted: exists,
	}
	if changed {
		// The hosting node itself is re-aggregated too but reported through
		// the leaf stream, not as an ancestor.
		for _, snapshot := range t.aggregatePathLocked(key.ElementID) {
			if snapshot.ElementID == key.ElementID {
				continue
			}
			result.ChangedAncestors = append(result.ChangedAncestors, snapshot)
		}
	}
	result.LeafNode = t.snapshotNodeLocked(node)
	return result, nil
}

// RevertLeafState restores a stream to the state captured in an apply result
// and repropagates, so a failed transition commit leaves no trace in the tree
// and a redelivery of the same alert is processed again from scratch.
// Params: stream key and the apply result of the failed commit.
// Returns: none; a stream already superseded by a newer apply is left alone.
func (t *Tree) RevertLeafState(key domain.StreamKey, result ApplyResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stream, ok := t.streams[key]
	if !ok {
		return
	}
	if stream.state.State != result.Leaf.State.State ||
		!stream.state.SourceTimestamp.Equal(result.Leaf.State.SourceTimestamp) {
		return
	}

	if result.StreamExisted {
		stream.state = result.Previous.State
		stream.since = result.Previous.Since
	} else {
		delete(t.streams, key)
		keys := t.byElement[key.ElementID][:0]
		for _, candidate := range t.byElement[key.ElementID] {
			if candidate != key {
				keys = append(keys, candidate)
			}
		}
		if len(keys) == 0 {
			delete(t.byElement, key.ElementID)
		} else {
			t.byElement[key.ElementID] = keys
		}
	}
	t.aggregatePathLocked(key.ElementID)
}

// aggregatePathLocked recomputes aggregated states bottom-up along one path.
// Params: element id to start from; caller holds the write lock.
// Returns: snapshots of nodes whose aggregated state transitioned.
func (t *Tree) aggregatePathLocked(elementID string) []NodeSnapshot {
	changed := make([]NodeSnapshot, 0, 4)
	for id := elementID; id != ""; {
		node, ok := t.nodes[id]
		if !ok {
			break
		}
		previous := node.state.State
		node.state = t.aggregateNodeLocked(node)
		if node.state.State != previous {
			changed = append(changed, t.snapshotNodeLocked(node))
		}
		id = node.ParentID
	}
	return changed
}

// aggregateNodeLocked computes worst-state-wins over streams and children.
// Params: node to aggregate; caller holds the lock.
// Returns: aggregated element state with triggeredBy from the most recent
// worst contributor.
func (t *Tree) aggregateNodeLocked(node *Node) domain.ElementState {
	aggregated := domain.ElementState{State: domain.StateOk}
	hasSource := false

	// Tie-break on equal severity: the contributor with the most recent
	// sourceTimestamp provides the triggeredBy fields.
	consider := func(candidate domain.ElementState) {
		if !hasSource || candidate.State.WorseThan(aggregated.State) ||
			(candidate.State == aggregated.State && candidate.SourceTimestamp.After(aggregated.SourceTimestamp)) {
			aggregated = candidate
			hasSource = true
		}
	}

	for _, key := range t.byElement[node.ElementID] {
		if stream, ok := t.streams[key]; ok {
			consider(stream.state)
		}
	}
	for _, childID := range node.ChildIDs {
		if child, ok := t.nodes[childID]; ok {
			consider(child.state)
		}
	}
	if !hasSource {
		return domain.ElementState{State: domain.StateOk}
	}
	return aggregated
}

func (t *Tree) snapshotNodeLocked(node *Node) NodeSnapshot {
	children := make([]string, len(node.ChildIDs))
	copy(children, node.ChildIDs)
	return NodeSnapshot{
		ElementID:     node.ElementID,
		Kind:          node.Kind,
		Name:          node.Name,
		ComponentType: node.ComponentType,
		ParentID:      node.ParentID,
		ChildIDs:      children,
		State:         cloneElementState(node.state),
	}
}

// Element returns a snapshot of one node.
// Params: element id.
// Returns: node snapshot and found flag.
func (t *Tree) Element(elementID string) (NodeSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[elementID]
	if !ok {
		return NodeSnapshot{}, false
	}
	return t.snapshotNodeLocked(node), true
}

// HasElement reports whether the element exists in the topology.
// Params: element id.
// Returns: true when the node is present.
func (t *Tree) HasElement(elementID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[elementID]
	return ok
}

// Stream returns a snapshot of one stream state.
// Params: stream key.
// Returns: stream snapshot and found flag.
func (t *Tree) Stream(key domain.StreamKey) (StreamSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stream, ok := t.streams[key]
	if !ok {
		return StreamSnapshot{}, false
	}
	return StreamSnapshot{Key: key, State: cloneElementState(stream.state), Since: stream.since, Escalated: stream.state.Escalated}, true
}

// NonOkStreams lists snapshots of all streams currently not ok.
// Params: none.
// Returns: deterministic stream snapshot list for the escalation scan.
func (t *Tree) NonOkStreams() []StreamSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]StreamSnapshot, 0)
	for key, stream := range t.streams {
		if stream.state.State == domain.StateOk {
			continue
		}
		out = append(out, StreamSnapshot{
			Key:       key,
			State:     cloneElementState(stream.state),
			Since:     stream.since,
			Escalated: stream.state.Escalated,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Snapshot returns an immutable copy of every node in the tree.
// Params: none.
// Returns: node snapshots taken under a brief shared lock, root first.
func (t *Tree) Snapshot() []NodeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]NodeSnapshot, 0, len(t.nodes))
	t.appendSubtreeLocked(t.rootID, &out)
	return out
}

func (t *Tree) appendSubtreeLocked(elementID string, out *[]NodeSnapshot) {
	node, ok := t.nodes[elementID]
	if !ok {
		return
	}
	*out = append(*out, t.snapshotNodeLocked(node))
	for _, childID := range node.ChildIDs {
		t.appendSubtreeLocked(childID, out)
	}
}

func cloneElementState(state domain.ElementState) domain.ElementState {
	out := state
	if len(state.CustomFields) > 0 {
		fields := make(map[string]string, len(state.CustomFields))
		for key, value := range state.CustomFields {
			fields[key] = value
		}
		out.CustomFields = fields
	}
	return out
}
