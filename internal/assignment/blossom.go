package assignment

// maxMatching returns a maximum cardinality matching of a general graph
// using Edmonds' blossom algorithm. adj lists neighbors in preference
// order; match[v] is v's partner or -1.
func maxMatching(adj [][]int) []int {
	n := len(adj)
	b := &blossomSearch{
		adj:       adj,
		match:     make([]int, n),
		parent:    make([]int, n),
		base:      make([]int, n),
		used:      make([]bool, n),
		inBlossom: make([]bool, n),
	}
	for i := range b.match {
		b.match[i] = -1
	}

	// a greedy start leaves fewer augmenting paths to find and honors the
	// neighbor preference order
	for v := 0; v < n; v++ {
		if b.match[v] != -1 {
			continue
		}
		for _, to := range adj[v] {
			if b.match[to] == -1 && to != v {
				b.match[v], b.match[to] = to, v
				break
			}
		}
	}

	for v := 0; v < n; v++ {
		if b.match[v] != -1 {
			continue
		}
		for u := b.findPath(v); u != -1; {
			pv := b.parent[u]
			next := b.match[pv]
			b.match[u], b.match[pv] = pv, u
			u = next
		}
	}
	return b.match
}

type blossomSearch struct {
	adj       [][]int
	match     []int
	parent    []int
	base      []int
	used      []bool
	inBlossom []bool
}

// findPath searches an alternating tree rooted at root and returns the
// free vertex ending an augmenting path, or -1
func (b *blossomSearch) findPath(root int) int {
	n := len(b.adj)
	for i := 0; i < n; i++ {
		b.used[i] = false
		b.parent[i] = -1
		b.base[i] = i
	}
	b.used[root] = true
	queue := []int{root}

	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, to := range b.adj[v] {
			if b.base[v] == b.base[to] || b.match[v] == to {
				continue
			}
			if to == root || (b.match[to] != -1 && b.parent[b.match[to]] != -1) {
				cur := b.lca(v, to)
				for i := range b.inBlossom {
					b.inBlossom[i] = false
				}
				b.markPath(v, cur, to)
				b.markPath(to, cur, v)
				for i := 0; i < n; i++ {
					if b.inBlossom[b.base[i]] {
						b.base[i] = cur
						if !b.used[i] {
							b.used[i] = true
							queue = append(queue, i)
						}
					}
				}
			} else if b.parent[to] == -1 {
				b.parent[to] = v
				if b.match[to] == -1 {
					return to
				}
				b.used[b.match[to]] = true
				queue = append(queue, b.match[to])
			}
		}
	}
	return -1
}

func (b *blossomSearch) lca(x, y int) int {
	seen := make([]bool, len(b.adj))
	for {
		x = b.base[x]
		seen[x] = true
		if b.match[x] == -1 {
			break
		}
		x = b.parent[b.match[x]]
	}
	for {
		y = b.base[y]
		if seen[y] {
			return y
		}
		y = b.parent[b.match[y]]
	}
}

func (b *blossomSearch) markPath(v, base, child int) {
	for b.base[v] != base {
		b.inBlossom[b.base[v]] = true
		b.inBlossom[b.base[b.match[v]]] = true
		b.parent[v] = child
		child = b.match[v]
		v = b.parent[b.match[v]]
	}
}

// bipartiteMatching returns a maximum matching between left and right
// vertices using augmenting paths. left[i] lists right vertices in
// preference order; the result maps each left vertex to its partner or -1.
func bipartiteMatching(left [][]int, nRight int) []int {
	matchRight := make([]int, nRight)
	for i := range matchRight {
		matchRight[i] = -1
	}

	var visited []bool
	var augment func(v int) bool
	augment = func(v int) bool {
		for _, u := range left[v] {
			if visited[u] {
				continue
			}
			visited[u] = true
			if matchRight[u] == -1 || augment(matchRight[u]) {
				matchRight[u] = v
				return true
			}
		}
		return false
	}

	for v := range left {
		visited = make([]bool, nRight)
		augment(v)
	}

	matchLeft := make([]int, len(left))
	for i := range matchLeft {
		matchLeft[i] = -1
	}
	for u, v := range matchRight {
		if v != -1 {
			matchLeft[v] = u
		}
	}
	return matchLeft
}
