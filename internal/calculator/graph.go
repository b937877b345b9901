package calculator

import (
	"fmt"
	"sort"
	"strings"
)

// Order sorts specs so every domain comes after the domains it derives from.
// Watched paths outside the given domains (such as project.rooms) add no
// edge. Ties keep the input order. A cycle is an error.
func Order(specs []Spec) ([]Spec, error) {
	index := make(map[string]int, len(specs))
	for i, s := range specs {
		if _, dup := index[s.Domain]; dup {
			return nil, fmt.Errorf("duplicate calculator domain %q", s.Domain)
		}
		index[s.Domain] = i
	}

	indegree := make([]int, len(specs))
	downstream := make([][]int, len(specs))
	for i, s := range specs {
		for _, up := range upstreamDomains(s) {
			j, ok := index[up]
			if !ok || j == i {
				continue
			}
			downstream[j] = append(downstream[j], i)
			indegree[i]++
		}
	}

	var ready []int
	for i := range specs {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Spec, 0, len(specs))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, specs[i])
		for _, k := range downstream[i] {
			indegree[k]--
			if indegree[k] == 0 {
				ready = append(ready, k)
			}
		}
	}

	if len(ordered) != len(specs) {
		var stuck []string
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, specs[i].Domain)
			}
		}
		return nil, fmt.Errorf("derivation cycle among calculators: %s", strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// upstreamDomains lists the distinct first segments of a spec's watch paths.
func upstreamDomains(s Spec) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range s.Derivations {
		for _, w := range d.Watch {
			head, _, _ := strings.Cut(w, ".")
			if !seen[head] {
				seen[head] = true
				out = append(out, head)
			}
		}
	}
	return out
}
