// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbol

import (
	"strings"

	"github.com/symbolengine/serenad/internal/lspwire"
)

// FindOptions controls findByNamePath's matching and limits.
type FindOptions struct {
	// SubstringMatch, when true, makes the final segment of the query a
	// substring match against a candidate's name; every earlier segment
	// must still match exactly. Non-terminal segments never fuzzy-match.
	SubstringMatch bool
	KindsIncluded  map[Kind]bool
	MaxResults     int
	MaxDepth       int
}

// FindByNamePath returns every symbol in tree whose ancestor chain
// matches path, in pre-order, earliest match first. The ambiguity
// policy is permissive: every equally-specific match is returned: the
// caller decides whether multiple hits is an error or an opportunity to
// act on the first.
func FindByNamePath(tree *Tree, path NamePath, opts FindOptions) []*Symbol {
	if len(path.Segments) == 0 {
		return nil
	}
	var results []*Symbol
	for _, root := range tree.Roots {
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			break
		}
		walkPreOrder(root, 0, opts.MaxDepth, func(s *Symbol, depth int) bool {
			if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
				return false
			}
			if opts.KindsIncluded != nil && len(opts.KindsIncluded) > 0 && !opts.KindsIncluded[s.Kind] {
				return true
			}
			if matchesNamePath(s, path, opts.SubstringMatch) {
				results = append(results, s)
			}
			return true
		})
	}
	return results
}

// matchesNamePath checks whether s sits at the end of a descending
// chain matching path. path.Absolute requires the chain's first
// element to be a file root (no parent).
func matchesNamePath(s *Symbol, path NamePath, substringMatch bool) bool {
	segments := path.Segments
	node := s
	for i := len(segments) - 1; i >= 0; i-- {
		if node == nil {
			return false
		}
		isLast := i == len(segments)-1
		if substringMatch && isLast {
			if !strings.Contains(node.Name, segments[i]) {
				return false
			}
		} else if node.Name != segments[i] {
			return false
		}
		node = node.Parent
	}
	if path.Absolute && node != nil {
		return false
	}
	return true
}

// walkPreOrder visits s and its descendants in pre-order, stopping
// early when visit returns false. maxDepth <= 0 means unlimited.
func walkPreOrder(s *Symbol, depth, maxDepth int, visit func(*Symbol, int) bool) bool {
	if !visit(s, depth) {
		return false
	}
	if maxDepth > 0 && depth+1 > maxDepth {
		return true
	}
	for _, c := range s.Children {
		if !walkPreOrder(c, depth+1, maxDepth, visit) {
			return false
		}
	}
	return true
}

// IterAncestors returns s's ancestors from nearest to furthest. The
// returned slice is a finite, one-shot snapshot; call again to
// re-iterate.
func IterAncestors(s *Symbol) []*Symbol {
	var out []*Symbol
	node := s.Parent
	for node != nil {
		out = append(out, node)
		node = node.Parent
	}
	return out
}

// IterDescendants returns s's descendants in pre-order, excluding s
// itself. The returned slice is a finite, one-shot snapshot.
func IterDescendants(s *Symbol) []*Symbol {
	var out []*Symbol
	for _, c := range s.Children {
		walkPreOrder(c, 0, 0, func(n *Symbol, _ int) bool {
			out = append(out, n)
			return true
		})
	}
	return out
}

// SmallestEnclosing returns the most deeply nested symbol in tree whose
// Range contains pos, or nil if none does. Used to resolve the
// "enclosing symbol" for a reference location.
func SmallestEnclosing(tree *Tree, pos lspwire.Position) *Symbol {
	var best *Symbol
	for _, root := range tree.Roots {
		walkPreOrder(root, 0, 0, func(s *Symbol, _ int) bool {
			if !s.Range.Contains(pos) {
				return true
			}
			if best == nil || rangeSmaller(s.Range, best.Range) {
				best = s
			}
			return true
		})
	}
	return best
}

func rangeSmaller(a, b lspwire.Range) bool {
	return spanOf(a) < spanOf(b)
}

func spanOf(r lspwire.Range) int {
	return (r.End.Line-r.Start.Line)*100000 + (r.End.Character - r.Start.Character)
}
