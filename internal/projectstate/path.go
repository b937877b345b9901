package projectstate

import (
	"strconv"
	"strings"
)

// splitPath breaks a dotted path into segments. Empty paths and paths with
// empty segments ("a..b", ".a") are rejected.
func splitPath(path string) ([]string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, false
		}
	}
	return segs, true
}

// PathOverlaps reports whether one path is a segment prefix of the other, so a
// write at "tile.calculated" overlaps a watch on "tile.calculated.areaWithWaste"
// and a write at "project.rooms.0.area" overlaps a watch on "project.rooms".
func PathOverlaps(a, b string) bool {
	as, ok := splitPath(a)
	if !ok {
		return false
	}
	bs, ok := splitPath(b)
	if !ok {
		return false
	}
	n := min(len(as), len(bs))
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func lookup(node any, segs []string) (any, bool) {
	cur := node
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// put writes v at segs below node, creating maps for missing intermediates.
// Nothing is mutated when the write fails.
func put(node any, segs []string, v any) (any, bool) {
	seg, last := segs[0], len(segs) == 1

	switch c := node.(type) {
	case map[string]any:
		if last {
			c[seg] = v
			return c, true
		}
		child, ok := c[seg]
		if !ok || child == nil {
			child = map[string]any{}
		}
		updated, ok := put(child, segs[1:], v)
		if !ok {
			return c, false
		}
		c[seg] = updated
		return c, true

	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > len(c) {
			return c, false
		}
		orig := c
		if idx == len(c) {
			c = append(c, nil)
		}
		if last {
			c[idx] = v
			return c, true
		}
		child := c[idx]
		if child == nil {
			child = map[string]any{}
		}
		updated, ok := put(child, segs[1:], v)
		if !ok {
			return orig, false
		}
		c[idx] = updated
		return c, true

	default:
		return node, false
	}
}

// remove deletes the leaf at segs. List elements are spliced out.
func remove(root map[string]any, segs []string) bool {
	parentSegs, leaf := segs[:len(segs)-1], segs[len(segs)-1]

	var parent any = root
	if len(parentSegs) > 0 {
		p, ok := lookup(root, parentSegs)
		if !ok {
			return false
		}
		parent = p
	}

	switch p := parent.(type) {
	case map[string]any:
		if _, ok := p[leaf]; !ok {
			return false
		}
		delete(p, leaf)
		return true
	case []any:
		idx, err := strconv.Atoi(leaf)
		if err != nil || idx < 0 || idx >= len(p) {
			return false
		}
		spliced := make([]any, 0, len(p)-1)
		spliced = append(spliced, p[:idx]...)
		spliced = append(spliced, p[idx+1:]...)
		_, ok := put(root, parentSegs, spliced)
		return ok
	default:
		return false
	}
}

// clone deep-copies the container types the tree is built from. Typed slices
// of maps are normalized to []any so numeric path segments can index them.
func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = clone(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = clone(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = clone(val)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	default:
		return v
	}
}
