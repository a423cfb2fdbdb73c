package community

import "github.com/nahisaho/YAGOKORO-sub003/knowledge"

// Hierarchy indexes a flat community slice (as produced by Detector.Detect)
// for parent/child and level-based lookups.
type Hierarchy struct {
	byID    map[string]knowledge.Community
	byLevel map[int][]knowledge.Community
}

// NewHierarchy builds a Hierarchy over communities.
func NewHierarchy(communities []knowledge.Community) *Hierarchy {
	h := &Hierarchy{
		byID:    make(map[string]knowledge.Community, len(communities)),
		byLevel: make(map[int][]knowledge.Community),
	}
	for _, c := range communities {
		h.byID[c.ID] = c
		h.byLevel[c.Level] = append(h.byLevel[c.Level], c)
	}
	return h
}

// Get returns the community by ID.
func (h *Hierarchy) Get(id string) (knowledge.Community, bool) {
	c, ok := h.byID[id]
	return c, ok
}

// ByLevel returns all communities at a given hierarchical level.
func (h *Hierarchy) ByLevel(level int) []knowledge.Community {
	return h.byLevel[level]
}

// MaxLevel returns the highest level present.
func (h *Hierarchy) MaxLevel() int {
	max := 0
	for level := range h.byLevel {
		if level > max {
			max = level
		}
	}
	return max
}

// Children returns the direct child communities of id.
func (h *Hierarchy) Children(id string) []knowledge.Community {
	parent, ok := h.byID[id]
	if !ok {
		return nil
	}
	children := make([]knowledge.Community, 0, len(parent.ChildIDs))
	for _, childID := range parent.ChildIDs {
		if c, ok := h.byID[childID]; ok {
			children = append(children, c)
		}
	}
	return children
}

// Ancestors returns id's parent chain, nearest first.
func (h *Hierarchy) Ancestors(id string) []knowledge.Community {
	var chain []knowledge.Community
	current, ok := h.byID[id]
	for ok && current.ParentID != "" {
		parent, found := h.byID[current.ParentID]
		if !found {
			break
		}
		chain = append(chain, parent)
		current, ok = parent, found
	}
	return chain
}
