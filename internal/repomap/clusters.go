package repomap

import (
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

func symbolKey(s extraction.Symbol) string {
	return s.Location() + "#" + s.Name
}

// Clusters groups the symbols of similar pairs into connected components, so
// three near-identical helpers show up as one group instead of three pairs.
// Clusters are ordered by size, largest first, and members by location.
func Clusters(pairs []Pair) [][]extraction.Symbol {
	g := graph.New(symbolKey)

	for _, p := range pairs {
		// Duplicate vertices and edges are expected across pairs.
		_ = g.AddVertex(p.A)
		_ = g.AddVertex(p.B)
		_ = g.AddEdge(symbolKey(p.A), symbolKey(p.B))
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(adjacency))
	for k := range adjacency {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	visited := make(map[string]bool, len(keys))
	var clusters [][]extraction.Symbol
	for _, start := range keys {
		if visited[start] {
			continue
		}

		var members []extraction.Symbol
		_ = graph.BFS(g, start, func(k string) bool {
			visited[k] = true
			if s, err := g.Vertex(k); err == nil {
				members = append(members, s)
			}
			return false
		})

		sort.Slice(members, func(i, j int) bool {
			if members[i].FilePath != members[j].FilePath {
				return members[i].FilePath < members[j].FilePath
			}
			return members[i].Line < members[j].Line
		})
		clusters = append(clusters, members)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i]) > len(clusters[j])
	})
	return clusters
}
