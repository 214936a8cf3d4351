package daemon

import (
	"fmt"
	"slices"
	"strings"
)

// initOrder sorts components so every dependency initializes before its
// dependents. Among components whose dependencies are satisfied, the one
// registered first goes first, so the order is stable across runs.
func (d *Daemon) initOrder() ([]Component, error) {
	comps := d.snapshot()

	pending := make(map[string]int, len(comps))
	dependents := make(map[string][]string, len(comps))
	for _, comp := range comps {
		pending[comp.Name()] = 0
	}
	for _, comp := range comps {
		for _, dep := range comp.Dependencies() {
			if _, ok := pending[dep]; !ok {
				return nil, fmt.Errorf("component %s depends on %s which is not registered", comp.Name(), dep)
			}
			pending[comp.Name()]++
			dependents[dep] = append(dependents[dep], comp.Name())
		}
	}

	order := make([]Component, 0, len(comps))
	placed := make(map[string]bool, len(comps))
	for len(order) < len(comps) {
		progressed := false
		for _, comp := range comps {
			name := comp.Name()
			if placed[name] || pending[name] > 0 {
				continue
			}
			placed[name] = true
			order = append(order, comp)
			for _, next := range dependents[name] {
				pending[next]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("circular dependency among components: %s", strings.Join(unplaced(comps, placed), ", "))
		}
	}
	return order, nil
}

func unplaced(comps []Component, placed map[string]bool) []string {
	var names []string
	for _, comp := range comps {
		if !placed[comp.Name()] {
			names = append(names, comp.Name())
		}
	}
	slices.Sort(names)
	return names
}
