package models

import (
	"fmt"
	"strings"
)

// ChildKey is a typed reference from a region to another entity:
// "map:<projectID>" or "location:<floorID>".
type ChildKey string

// Child key kinds.
const (
	ChildKindMap      = "map"
	ChildKindLocation = "location"
)

// MapKey builds the child key for a project.
func MapKey(projectID string) ChildKey {
	return ChildKey(ChildKindMap + ":" + projectID)
}

// LocationKey builds the child key for a floor.
func LocationKey(floorID string) ChildKey {
	return ChildKey(ChildKindLocation + ":" + floorID)
}

// Parse splits the key into kind and entity ID.
func (k ChildKey) Parse() (kind, id string, err error) {
	kind, id, ok := strings.Cut(string(k), ":")
	if !ok || id == "" || (kind != ChildKindMap && kind != ChildKindLocation) {
		return "", "", fmt.Errorf("invalid child key: %q", string(k))
	}
	return kind, id, nil
}

// IsMap reports whether the key references a project.
func (k ChildKey) IsMap() bool {
	kind, _, err := k.Parse()
	return err == nil && kind == ChildKindMap
}

// HasChild reports whether the region links the given key.
func (r *Region) HasChild(key ChildKey) bool {
	for _, c := range r.Children {
		if c == key {
			return true
		}
	}
	return false
}

// AddChild links key, keeping set semantics. Reports whether anything changed.
func (r *Region) AddChild(key ChildKey) bool {
	if r.HasChild(key) {
		return false
	}
	r.Children = append(r.Children, key)
	return true
}

// RemoveChild unlinks key. Reports whether anything changed.
func (r *Region) RemoveChild(key ChildKey) bool {
	for i, c := range r.Children {
		if c == key {
			r.Children = append(r.Children[:i], r.Children[i+1:]...)
			return true
		}
	}
	return false
}
