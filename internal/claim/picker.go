package claim

import (
	"context"
	"sync"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// SampleLister lists the available sample image names.
type SampleLister interface {
	ListSamples(ctx context.Context) ([]string, error)
}

// Picker backs the sample image grid of one flow.
type Picker struct {
	machine *Machine
	lister  SampleLister

	mu     sync.Mutex
	loaded bool
	refs   []string
}

// NewPicker returns a picker driving m.
func NewPicker(m *Machine, lister SampleLister) *Picker {
	return &Picker{machine: m, lister: lister}
}

// Load fetches the sample references once; later calls reuse the list. A
// failed fetch is not cached.
func (p *Picker) Load(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return append([]string(nil), p.refs...), nil
	}
	names, err := p.lister.ListSamples(ctx)
	if err != nil {
		return nil, Wrap(KindTransport, "samples.list", "failed to fetch sample images", err)
	}
	p.refs = make([]string, 0, len(names))
	for _, name := range names {
		p.refs = append(p.refs, models.SampleRef(name))
	}
	p.loaded = true
	return append([]string(nil), p.refs...), nil
}

// Highlight marks ref in the grid without making it active. Only refs
// returned by Load are accepted.
func (p *Picker) Highlight(ref string) bool {
	if !p.known(ref) {
		return false
	}
	return p.machine.Apply(Event{Kind: EventSampleHighlighted, Ref: ref})
}

func (p *Picker) known(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.refs {
		if r == ref {
			return true
		}
	}
	return false
}

// Confirm promotes the highlighted sample to the active source, clearing
// any dropped file.
func (p *Picker) Confirm() bool {
	return p.machine.Apply(Event{Kind: EventSampleConfirmed})
}
