package playground

import (
	"github.com/oklog/ulid/v2"

	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/project"
)

// Registry is the ordered set of panels. It never holds fewer than one.
type Registry struct {
	opts    PanelOptions
	project project.ID
	panels  []*Panel
	newID   func() string
}

// NewRegistry creates a registry with one fresh panel for the given
// project identifier. The returned request, if any, is that panel's
// initial discovery.
func NewRegistry(opts PanelOptions, id project.ID) (*Registry, *DiscoveryRequest) {
	r := &Registry{
		opts:    opts,
		project: id,
		newID:   func() string { return ulid.Make().String() },
	}
	_, req := r.Add()
	return r, req
}

func (r *Registry) Len() int { return len(r.panels) }

func (r *Registry) Panels() []*Panel {
	return append([]*Panel(nil), r.panels...)
}

func (r *Registry) Get(id string) (*Panel, bool) {
	for _, p := range r.panels {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

// Index returns the position of the panel, or -1.
func (r *Registry) Index(id string) int {
	for i, p := range r.panels {
		if p.id == id {
			return i
		}
	}
	return -1
}

// ShowRemove reports whether panels offer a remove affordance.
func (r *Registry) ShowRemove() bool { return len(r.panels) > 1 }

// Project returns the identifier panels were last given.
func (r *Registry) Project() project.ID { return r.project }

// Add appends a fresh panel bound to the current project identifier.
func (r *Registry) Add() (*Panel, *DiscoveryRequest) {
	p := NewPanel(r.newID(), r.opts)
	r.panels = append(r.panels, p)
	req := p.SetProject(r.project)
	logging.Debug().Str("panel", p.id).Int("panels", len(r.panels)).Msg("panel added")
	return p, req
}

// Duplicate adds a fresh panel; the source panel's state is not copied.
func (r *Registry) Duplicate(string) (*Panel, *DiscoveryRequest) {
	return r.Add()
}

// Remove disposes and drops the panel. It is a no-op for the last panel or
// an unknown id.
func (r *Registry) Remove(id string) bool {
	if len(r.panels) <= 1 {
		return false
	}
	i := r.Index(id)
	if i < 0 {
		return false
	}
	r.panels[i].Dispose()
	r.panels = append(r.panels[:i:i], r.panels[i+1:]...)
	logging.Debug().Str("panel", id).Int("panels", len(r.panels)).Msg("panel removed")
	return true
}

// Reset disposes every panel and leaves exactly one fresh panel.
func (r *Registry) Reset() (*Panel, *DiscoveryRequest) {
	for _, p := range r.panels {
		p.Dispose()
	}
	r.panels = nil
	logging.Info().Msg("playground reset")
	return r.Add()
}

// SetProject forwards an identifier transition to every panel and returns
// the discoveries to run.
func (r *Registry) SetProject(id project.ID) []*DiscoveryRequest {
	r.project = id
	var reqs []*DiscoveryRequest
	for _, p := range r.panels {
		if req := p.SetProject(id); req != nil {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

// ApplyDiscovery routes a result to its panel. Results for removed panels
// are dropped.
func (r *Registry) ApplyDiscovery(res DiscoveryResult) bool {
	p, ok := r.Get(res.PanelID)
	if !ok {
		return false
	}
	return p.ApplyDiscovery(res)
}

// SubmitAll starts a submission on every panel that can submit. Panels
// that are busy or not ready are skipped.
func (r *Registry) SubmitAll() []*SubmitRequest {
	var reqs []*SubmitRequest
	for _, p := range r.panels {
		req, err := p.BeginSubmit()
		if err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// Close disposes every panel. The registry must not be used afterwards.
func (r *Registry) Close() {
	for _, p := range r.panels {
		p.Dispose()
	}
}
