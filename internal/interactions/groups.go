package interactions

import (
	"sort"

	"weave/internal/storage"
)

// ProcessGroups is a partition of all modules into connected components of
// the undirected import graph. It is a transient analysis artifact,
// recomputed at the start of each inference run.
type ProcessGroups struct {
	GroupToModules map[int][]storage.Module
	ModuleToGroup  map[int64]int
	GroupCount     int
}

// GroupPair is an unordered pair of distinct process groups
type GroupPair struct {
	A []storage.Module
	B []storage.Module
}

// ComputeProcessGroups partitions modules into process groups using
// union-find over the import edge set. Isolated modules form singleton
// groups. The partition is a pure function of the input: group IDs are
// assigned in module order, so the same modules and edges always produce
// the same result.
func ComputeProcessGroups(modules []storage.Module, imports []storage.ModuleImport) *ProcessGroups {
	parent := make(map[int64]int64, len(modules))
	rank := make(map[int64]int, len(modules))
	for _, m := range modules {
		parent[m.ID] = m.ID
	}

	var find func(id int64) int64
	find = func(id int64) int64 {
		if parent[id] != id {
			parent[id] = find(parent[id]) // path compression
		}
		return parent[id]
	}

	union := func(a, b int64) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rank[ra] < rank[rb] {
			ra, rb = rb, ra
		}
		parent[rb] = ra
		if rank[ra] == rank[rb] {
			rank[ra]++
		}
	}

	for _, imp := range imports {
		// Edges referencing unknown modules are ignored
		if _, ok := parent[imp.FromModuleID]; !ok {
			continue
		}
		if _, ok := parent[imp.ToModuleID]; !ok {
			continue
		}
		union(imp.FromModuleID, imp.ToModuleID)
	}

	// Deterministic group numbering: walk modules sorted by id and assign
	// group ids in first-seen root order.
	sorted := make([]storage.Module, len(modules))
	copy(sorted, modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	groups := &ProcessGroups{
		GroupToModules: make(map[int][]storage.Module),
		ModuleToGroup:  make(map[int64]int),
	}
	rootToGroup := make(map[int64]int)

	for _, m := range sorted {
		root := find(m.ID)
		groupID, ok := rootToGroup[root]
		if !ok {
			groupID = groups.GroupCount
			rootToGroup[root] = groupID
			groups.GroupCount++
		}
		groups.ModuleToGroup[m.ID] = groupID
		groups.GroupToModules[groupID] = append(groups.GroupToModules[groupID], m)
	}

	return groups
}

// CrossProcessGroupPairs returns all unordered pairs of distinct groups.
// For K groups this is exactly K(K-1)/2 pairs; a group is never paired
// with itself and no pair appears twice.
func CrossProcessGroupPairs(groups *ProcessGroups) []GroupPair {
	var pairs []GroupPair
	for a := 0; a < groups.GroupCount; a++ {
		for b := a + 1; b < groups.GroupCount; b++ {
			pairs = append(pairs, GroupPair{
				A: groups.GroupToModules[a],
				B: groups.GroupToModules[b],
			})
		}
	}
	return pairs
}

// SameProcess reports whether two modules belong to the same process group
func SameProcess(groups *ProcessGroups, a, b int64) bool {
	ga, okA := groups.ModuleToGroup[a]
	gb, okB := groups.ModuleToGroup[b]
	return okA && okB && ga == gb
}
