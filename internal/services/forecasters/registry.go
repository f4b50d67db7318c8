package forecasters

import (
	"DemandCast/internal/domain/models"
	domsvc "DemandCast/internal/domain/service"
)

// Registry is the fixed set of model adapters resolved at startup.
type Registry struct {
	adapters map[models.Technique]domsvc.ModelAdapter
	enabled  map[models.Technique]bool
}

// NewRegistry registers adapters. An empty enabled list enables every registered technique.
func NewRegistry(enabled []string, adapters ...domsvc.ModelAdapter) *Registry {
	r := &Registry{
		adapters: make(map[models.Technique]domsvc.ModelAdapter, len(adapters)),
		enabled:  make(map[models.Technique]bool, len(adapters)),
	}
	for _, a := range adapters {
		r.adapters[a.Technique()] = a
	}
	if len(enabled) == 0 {
		for t := range r.adapters {
			r.enabled[t] = true
		}
	} else {
		for _, name := range enabled {
			r.enabled[models.Technique(name)] = true
		}
	}
	return r
}

// Default builds the registry with the four built-in techniques.
func Default(enabled []string) *Registry {
	return NewRegistry(enabled, NewARIMA(), NewHoltWinters(), NewProphet(), NewGBM())
}

// Adapter returns the adapter for t when it is registered, enabled and available.
func (r *Registry) Adapter(t models.Technique) (domsvc.ModelAdapter, bool) {
	a, ok := r.adapters[t]
	if !ok || !r.enabled[t] || !a.Available() {
		return nil, false
	}
	return a, true
}

func (r *Registry) IsAvailable(t models.Technique) bool {
	_, ok := r.Adapter(t)
	return ok
}

// Available lists usable techniques in fallback order.
func (r *Registry) Available() []models.Technique {
	out := make([]models.Technique, 0, len(models.AllTechniques))
	for _, t := range models.AllTechniques {
		if r.IsAvailable(t) {
			out = append(out, t)
		}
	}
	return out
}
