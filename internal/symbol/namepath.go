// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symbol

import "strings"

// NamePath is an ordered sequence of symbol names. An absolute path's
// first segment identifies a file root; a relative path can match at
// any depth.
type NamePath struct {
	Segments []string
	Absolute bool
}

// ParseNamePath splits "a/b/c" or "/a/b/c" into a NamePath.
func ParseNamePath(s string) NamePath {
	absolute := strings.HasPrefix(s, "/")
	s = strings.TrimPrefix(s, "/")
	var segments []string
	if s != "" {
		segments = strings.Split(s, "/")
	}
	return NamePath{Segments: segments, Absolute: absolute}
}

// String renders the NamePath back to its slash-separated form.
func (p NamePath) String() string {
	joined := strings.Join(p.Segments, "/")
	if p.Absolute {
		return "/" + joined
	}
	return joined
}

// NameOf ascends via Parent references to build the NamePath locating s
// within its tree. The result is absolute when s's topmost ancestor has
// no further parent (i.e. is a file root).
func NameOf(s *Symbol) NamePath {
	var segments []string
	node := s
	for node != nil {
		segments = append([]string{node.Name}, segments...)
		node = node.Parent
	}
	return NamePath{Segments: segments, Absolute: true}
}
