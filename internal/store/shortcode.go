package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/drawmap/backend/internal/models"
)

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9]+`)
	slugCollapse = regexp.MustCompile(`-{2,}`)
)

// Slugify reduces a name to slug form: lower case, ascii word characters and
// single dashes only.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// RefreshShortcodes (re)derives the public keys for every project and floor.
// Explicit shortcodes are sanitized but preserved; missing ones are derived
// from names, deduplicated with -1, -2, ... suffixes. Floors get
// "<parentKey>-<ordinal>" with the smallest unused positive ordinal under
// their project. Reports whether anything changed.
func (s *Store) RefreshShortcodes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshShortcodesLocked()
}

func (s *Store) refreshShortcodesLocked() bool {
	changed := false
	taken := make(map[string]bool)

	// Explicit project shortcodes win and claim their slot first.
	for _, p := range s.data.Projects {
		if p.Shortcode == "" {
			continue
		}
		clean := Slugify(p.Shortcode)
		if clean == "" {
			p.Shortcode = ""
			changed = true
			continue
		}
		if clean != p.Shortcode {
			p.Shortcode = clean
			changed = true
		}
		if taken[clean] {
			p.Shortcode = ""
			changed = true
			continue
		}
		taken[clean] = true
	}

	for _, p := range s.data.Projects {
		if p.Shortcode != "" {
			continue
		}
		base := Slugify(p.Name)
		if base == "" {
			base = "map"
		}
		key := base
		for n := 1; taken[key]; n++ {
			key = fmt.Sprintf("%s-%d", base, n)
		}
		p.Shortcode = key
		taken[key] = true
		changed = true
	}

	for _, p := range s.data.Projects {
		if s.refreshFloorShortcodesLocked(p) {
			changed = true
		}
	}
	return changed
}

func (s *Store) refreshFloorShortcodesLocked(p *models.Project) bool {
	changed := false
	used := make(map[int]bool)

	// Explicit floor shortcodes are preserved; their ordinals (if they follow
	// the derived "<parentKey>-<n>" form) are excluded from renumbering.
	prefix := p.Shortcode + "-"
	for _, f := range p.Floors {
		if f.Shortcode == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(f.Shortcode, prefix); ok {
			var n int
			if _, err := fmt.Sscanf(rest, "%d", &n); err == nil && n > 0 {
				used[n] = true
			}
		}
	}

	for _, f := range p.Floors {
		if f.Shortcode != "" {
			continue
		}
		n := 1
		for used[n] {
			n++
		}
		used[n] = true
		f.Shortcode = fmt.Sprintf("%s%d", prefix, n)
		changed = true
	}
	return changed
}
