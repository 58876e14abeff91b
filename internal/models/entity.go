// Package models defines the persisted entity shapes: projects ("maps"),
// floors ("locations"), drawn regions ("zones") and their lookup tables.
package models

import (
	"regexp"
	"strings"

	"github.com/drawmap/backend/internal/geometry"
)

// Project is a building, site or plot. Projects nest through ParentID and own
// floors and drawn regions.
type Project struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	TypeID    string           `json:"type,omitempty"`
	ParentID  string           `json:"parentId,omitempty"`
	Shortcode string           `json:"shortcode,omitempty"`
	Floors    []*Floor         `json:"floors"`
	Regions   []*Region        `json:"regions"`
	Frontend  FrontendSettings `json:"frontend"`
}

// FrontendSettings controls how the public page renders a project.
type FrontendSettings struct {
	ShowLocationTable bool   `json:"showLocationTable"`
	TableScope        string `json:"tableScope,omitempty"` // "current" or "subtree"
}

// Floor is a unit or level owned by exactly one project. Area, price and rent
// are opaque display strings; the backend never interprets them.
type Floor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TypeID      string    `json:"type,omitempty"`
	StatusID    string    `json:"statusId,omitempty"`
	StatusLabel string    `json:"status,omitempty"` // denormalized label, used to refit stale references
	Shortcode   string    `json:"shortcode,omitempty"`
	Area        string    `json:"area,omitempty"`
	Price       string    `json:"price,omitempty"`
	Rent        string    `json:"rent,omitempty"`
	Regions     []*Region `json:"regions"`
}

// Region is a polygon (or an open polyline still under construction) drawn
// over an owner's background image. Points are stored normalized to the unit
// square, never in raw pixels, so geometry survives background resizes.
type Region struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	StatusID    string     `json:"statusId,omitempty"`
	StatusLabel string     `json:"status,omitempty"`
	Geometry    Geometry   `json:"geometry"`
	Closed      bool       `json:"closed"`
	Children    []ChildKey `json:"children,omitempty"`
	DetailURL   string     `json:"detailUrl,omitempty"`
	URL         string     `json:"url,omitempty"`
	Meta        RegionMeta `json:"meta"`
}

// Geometry holds the ordered vertex list of a region.
type Geometry struct {
	Points []geometry.Point `json:"points"`
}

// MinPolygonPoints is the vertex count at which a polyline becomes a closed
// polygon.
const MinPolygonPoints = 3

// RegionMeta are the drawing attributes of a region.
type RegionMeta struct {
	StrokeWidth   int `json:"strokeWidth"`
	StrokeOpacity int `json:"strokeOpacity"`
	FillOpacity   int `json:"fillOpacity"`
}

// Clamp forces the meta values into their allowed ranges: stroke width 1..10,
// opacities 0..100.
func (m *RegionMeta) Clamp() {
	m.StrokeWidth = clampInt(m.StrokeWidth, 1, 10)
	m.StrokeOpacity = clampInt(m.StrokeOpacity, 0, 100)
	m.FillOpacity = clampInt(m.FillOpacity, 0, 100)
}

// Type labels a project or floor category.
type Type struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Status labels availability (sold, reserved, free, ...).
type Status struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Color is a palette entry.
type Color struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// Image describes an uploaded background or gallery image.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

var hexColorPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

// NormalizeColor canonicalizes a 6-hex color to upper case with a leading
// "#". Values that are not 6-hex are returned unchanged.
func NormalizeColor(c string) string {
	m := hexColorPattern.FindStringSubmatch(strings.TrimSpace(c))
	if m == nil {
		return c
	}
	return "#" + strings.ToUpper(m[1])
}

// CloneRegion makes a deep copy of a region.
func CloneRegion(r *Region) *Region {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Geometry.Points = append([]geometry.Point(nil), r.Geometry.Points...)
	cp.Children = append([]ChildKey(nil), r.Children...)
	return &cp
}

// CloneRegions deep-copies a region slice.
func CloneRegions(regions []*Region) []*Region {
	out := make([]*Region, 0, len(regions))
	for _, r := range regions {
		out = append(out, CloneRegion(r))
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
