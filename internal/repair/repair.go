// Package repair migrates persisted datasets to the current schema on load:
// legacy field names, legacy hash IDs, dangling references and leftover demo
// assets are all fixed up before the model is handed to the editor.
package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/drawmap/backend/internal/geometry"
	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/store"
)

// Report records which repair steps mutated anything. The owner dataset is
// only re-persisted when at least one step changed something, so a clean load
// causes no write.
type Report struct {
	KeysRemapped         bool `json:"keysRemapped"`
	RegionsBackfilled    bool `json:"regionsBackfilled"`
	ParentsCleared       bool `json:"parentsCleared"`
	StatusesRelinked     bool `json:"statusesRelinked"`
	DemoAssetsRemoved    bool `json:"demoAssetsRemoved"`
	IDsMigrated          bool `json:"idsMigrated"`
	GeometryNormalized   bool `json:"geometryNormalized"`
	ShortcodesBackfilled bool `json:"shortcodesBackfilled"`
	HierarchySorted      bool `json:"hierarchySorted"`
}

// Changed reports whether any step mutated the dataset.
func (r *Report) Changed() bool {
	return r.KeysRemapped || r.RegionsBackfilled || r.ParentsCleared ||
		r.StatusesRelinked || r.DemoAssetsRemoved || r.IDsMigrated ||
		r.GeometryNormalized || r.ShortcodesBackfilled || r.HierarchySorted
}

// Load decodes the raw keyed dataset, runs every repair step over it and
// returns the repaired store.
func Load(raw map[string]json.RawMessage, alloc *idalloc.Allocator) (*store.Store, *Report, error) {
	report := &Report{}

	projectsRaw, err := decodeRawProjects(raw[models.KeyProjects])
	if err != nil {
		return nil, nil, fmt.Errorf("decoding projects: %w", err)
	}

	report.KeysRemapped = remapLegacyKeys(projectsRaw)
	report.RegionsBackfilled = backfillRegions(projectsRaw)

	dataset, err := decodeDataset(raw, projectsRaw)
	if err != nil {
		return nil, nil, err
	}

	// Region allocation must know every persisted ID plus the bootstrap hint
	// before any missing ID gets assigned.
	if hint, ok := decodeInt(raw[models.KeyRegionNext]); ok {
		alloc.SeedNext(idalloc.KindRegion, hint)
	}
	reserveAll(dataset, alloc)
	if assignMissingRegionIDs(dataset, alloc) {
		report.RegionsBackfilled = true
	}

	report.ParentsCleared = sanitizeParents(dataset)
	report.StatusesRelinked = relinkStatuses(dataset)
	report.DemoAssetsRemoved = removeDemoAssets(dataset)
	report.IDsMigrated = migrateLegacyIDs(dataset, alloc)
	report.GeometryNormalized = normalizeEntities(dataset)

	st := store.New(dataset, alloc)
	report.ShortcodesBackfilled = st.RefreshShortcodes()
	report.HierarchySorted = st.SortHierarchy()

	return st, report, nil
}

// legacy all-lowercase field names and their current forms
var (
	projectKeyRemap = map[string]string{
		"parentid": "parentId",
	}
	floorKeyRemap = map[string]string{
		"statusid":  "statusId",
		"detailurl": "detailUrl",
	}
)

func remapLegacyKeys(projects []map[string]any) bool {
	changed := false
	for _, p := range projects {
		if remapKeys(p, projectKeyRemap) {
			changed = true
		}
		for _, f := range rawList(p["floors"]) {
			if remapKeys(f, floorKeyRemap) {
				changed = true
			}
		}
	}
	return changed
}

func remapKeys(m map[string]any, table map[string]string) bool {
	changed := false
	for legacy, current := range table {
		v, ok := m[legacy]
		if !ok {
			continue
		}
		// never overwrite an already-present current-form value
		if _, present := m[current]; !present {
			m[current] = v
		}
		delete(m, legacy)
		changed = true
	}
	return changed
}

// backfillRegions synthesizes a regions array from the legacy single
// "geometry" field and deletes the legacy field.
func backfillRegions(projects []map[string]any) bool {
	changed := false
	entities := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		entities = append(entities, p)
		for _, f := range rawList(p["floors"]) {
			entities = append(entities, f)
		}
	}
	for _, e := range entities {
		geo, hasLegacy := e["geometry"]
		if _, hasRegions := e["regions"]; hasRegions || !hasLegacy {
			continue
		}
		closed := false
		if g, ok := geo.(map[string]any); ok {
			if pts, ok := g["points"].([]any); ok {
				closed = len(pts) >= models.MinPolygonPoints
			}
		}
		e["regions"] = []any{map[string]any{
			"geometry": geo,
			"closed":   closed,
		}}
		delete(e, "geometry")
		changed = true
	}
	return changed
}

// sanitizeParents clears empty, self-referential and dangling parent
// pointers.
func sanitizeParents(d *models.Dataset) bool {
	changed := false
	for _, p := range d.Projects {
		if p.ParentID == "" {
			continue
		}
		if p.ParentID == p.ID || d.ProjectByID(p.ParentID) == nil {
			p.ParentID = ""
			changed = true
		}
	}
	return changed
}

// relinkStatuses refits stale status references: exact label match first,
// then the first available status, then cleared.
func relinkStatuses(d *models.Dataset) bool {
	changed := false

	refit := func(statusID, statusLabel *string) {
		if *statusID == "" || d.StatusByID(*statusID) != nil {
			return
		}
		if s := d.StatusByLabel(*statusLabel); s != nil {
			*statusID = s.ID
			changed = true
			return
		}
		if len(d.Statuses) > 0 {
			*statusID = d.Statuses[0].ID
			*statusLabel = d.Statuses[0].Label
			changed = true
			return
		}
		*statusID = ""
		changed = true
	}

	for _, p := range d.Projects {
		for _, f := range p.Floors {
			refit(&f.StatusID, &f.StatusLabel)
		}
	}
	d.EachRegion(func(_ any, r *models.Region) {
		refit(&r.StatusID, &r.StatusLabel)
	})
	return changed
}

// Placeholder images shipped with a fresh install; stale references to them
// are stripped on load.
var demoAssetSuffixes = []string{
	"assets/images/demo-map.jpg",
	"assets/images/demo-floor.jpg",
	"assets/images/placeholder.png",
}

func removeDemoAssets(d *models.Dataset) bool {
	changed := false
	for key, img := range d.Images {
		if img == nil {
			delete(d.Images, key)
			changed = true
			continue
		}
		for _, suffix := range demoAssetSuffixes {
			if strings.HasSuffix(img.URL, suffix) {
				delete(d.Images, key)
				changed = true
				break
			}
		}
	}
	return changed
}

// migrateLegacyIDs rewrites old hash-style type/status/color IDs to
// sequential form, updating every cross-reference together with the rename.
func migrateLegacyIDs(d *models.Dataset, alloc *idalloc.Allocator) bool {
	changed := false

	for _, t := range d.Types {
		if !idalloc.IsLegacyHashID(idalloc.KindType, t.ID) {
			continue
		}
		old := t.ID
		t.ID = alloc.Next(idalloc.KindType)
		for _, p := range d.Projects {
			if p.TypeID == old {
				p.TypeID = t.ID
			}
			for _, f := range p.Floors {
				if f.TypeID == old {
					f.TypeID = t.ID
				}
			}
		}
		changed = true
	}

	for _, s := range d.Statuses {
		if !idalloc.IsLegacyHashID(idalloc.KindStatus, s.ID) {
			continue
		}
		old := s.ID
		s.ID = alloc.Next(idalloc.KindStatus)
		for _, p := range d.Projects {
			for _, f := range p.Floors {
				if f.StatusID == old {
					f.StatusID = s.ID
				}
			}
		}
		d.EachRegion(func(_ any, r *models.Region) {
			if r.StatusID == old {
				r.StatusID = s.ID
			}
		})
		changed = true
	}

	for _, c := range d.Colors {
		if idalloc.IsLegacyHashID(idalloc.KindColor, c.ID) {
			c.ID = alloc.Next(idalloc.KindColor)
			changed = true
		}
	}
	return changed
}

// normalizeEntities enforces the cheap local invariants: finite geometry,
// clamped meta values, closed flags consistent with point counts, canonical
// color form.
func normalizeEntities(d *models.Dataset) bool {
	changed := false
	d.EachRegion(func(_ any, r *models.Region) {
		clean := geometry.Sanitize(r.Geometry.Points)
		if len(clean) != len(r.Geometry.Points) {
			r.Geometry.Points = clean
			changed = true
		}
		if r.Closed && len(r.Geometry.Points) < models.MinPolygonPoints {
			r.Closed = false
			changed = true
		}
		before := r.Meta
		r.Meta.Clamp()
		if r.Meta != before {
			changed = true
		}
	})
	for _, t := range d.Types {
		if c := models.NormalizeColor(t.Color); c != t.Color {
			t.Color = c
			changed = true
		}
	}
	for _, s := range d.Statuses {
		if c := models.NormalizeColor(s.Color); c != s.Color {
			s.Color = c
			changed = true
		}
	}
	for _, c := range d.Colors {
		if v := models.NormalizeColor(c.Value); v != c.Value {
			c.Value = v
			changed = true
		}
	}
	return changed
}

func reserveAll(d *models.Dataset, alloc *idalloc.Allocator) {
	for _, t := range d.Types {
		alloc.Reserve(t.ID)
	}
	for _, s := range d.Statuses {
		alloc.Reserve(s.ID)
	}
	for _, c := range d.Colors {
		alloc.Reserve(c.ID)
	}
	for _, p := range d.Projects {
		alloc.Reserve(p.ID)
		for _, f := range p.Floors {
			alloc.Reserve(f.ID)
		}
	}
	d.EachRegion(func(_ any, r *models.Region) {
		alloc.Reserve(r.ID)
	})
}

func assignMissingRegionIDs(d *models.Dataset, alloc *idalloc.Allocator) bool {
	changed := false
	d.EachRegion(func(_ any, r *models.Region) {
		if r.ID == "" {
			r.ID = alloc.Next(idalloc.KindRegion)
			changed = true
		}
	})
	return changed
}
