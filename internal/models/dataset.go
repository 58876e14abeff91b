package models

// Store keys for the keyed remote dataset.
const (
	KeyProjects         = "dm-projects"
	KeyTypes            = "dm-types"
	KeyStatuses         = "dm-statuses"
	KeyColors           = "dm-colors"
	KeyExpandedProjects = "dm-expanded-projects"
	KeyImages           = "dm-images"
	KeyFonts            = "dm-fonts"
	KeyAccentColor      = "dm-frontend-accent-color"
	KeyFrontendColors   = "dm-frontend-colors"
	KeyRegionNext       = "dm-region-next"
)

// ImageKey builds the entity-scoped key images are stored under:
// "project__<id>" or "floor__<id>".
func ImageKey(entityKind, entityID string) string {
	return entityKind + "__" + entityID
}

// Dataset is the full in-memory entity model: the project tree plus the
// lookup tables it references.
type Dataset struct {
	Projects []*Project        `json:"projects"`
	Types    []*Type           `json:"types"`
	Statuses []*Status         `json:"statuses"`
	Colors   []*Color          `json:"colors"`
	Images   map[string]*Image `json:"images,omitempty"`
}

// ProjectByID finds a project anywhere in the dataset.
func (d *Dataset) ProjectByID(id string) *Project {
	for _, p := range d.Projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FloorByID finds a floor and its owning project.
func (d *Dataset) FloorByID(id string) (*Floor, *Project) {
	for _, p := range d.Projects {
		for _, f := range p.Floors {
			if f.ID == id {
				return f, p
			}
		}
	}
	return nil, nil
}

// StatusByID finds a status.
func (d *Dataset) StatusByID(id string) *Status {
	for _, s := range d.Statuses {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StatusByLabel finds a status by exact label match.
func (d *Dataset) StatusByLabel(label string) *Status {
	for _, s := range d.Statuses {
		if s.Label == label {
			return s
		}
	}
	return nil
}

// EachRegion visits every region in the tree, on projects and floors alike.
func (d *Dataset) EachRegion(fn func(owner any, r *Region)) {
	for _, p := range d.Projects {
		for _, r := range p.Regions {
			fn(p, r)
		}
		for _, f := range p.Floors {
			for _, r := range f.Regions {
				fn(f, r)
			}
		}
	}
}
