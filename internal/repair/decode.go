package repair

import (
	"encoding/json"
	"fmt"

	"github.com/drawmap/backend/internal/models"
)

// decodeRawProjects parses the projects payload into generic maps so the raw
// repair steps (key remapping, region backfill) can run before strict
// decoding.
func decodeRawProjects(data json.RawMessage) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var projects []map[string]any
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func decodeDataset(raw map[string]json.RawMessage, projectsRaw []map[string]any) (*models.Dataset, error) {
	d := &models.Dataset{Images: make(map[string]*models.Image)}

	if projectsRaw != nil {
		buf, err := json.Marshal(projectsRaw)
		if err != nil {
			return nil, fmt.Errorf("re-encoding projects: %w", err)
		}
		if err := json.Unmarshal(buf, &d.Projects); err != nil {
			return nil, fmt.Errorf("decoding projects: %w", err)
		}
	}
	if err := decodeKey(raw, models.KeyTypes, &d.Types); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, models.KeyStatuses, &d.Statuses); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, models.KeyColors, &d.Colors); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, models.KeyImages, &d.Images); err != nil {
		return nil, err
	}

	for _, p := range d.Projects {
		if p.Floors == nil {
			p.Floors = []*models.Floor{}
		}
		if p.Regions == nil {
			p.Regions = []*models.Region{}
		}
		for _, f := range p.Floors {
			if f.Regions == nil {
				f.Regions = []*models.Region{}
			}
		}
	}
	return d, nil
}

func decodeKey(raw map[string]json.RawMessage, key string, dst any) error {
	data, ok := raw[key]
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func decodeInt(data json.RawMessage) (int, bool) {
	if len(data) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, false
	}
	return n, true
}

func rawList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
