package claim

import (
	"sync"
	"time"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// Listener observes applied events. It runs with the machine locked and
// must neither block nor call back into the machine.
type Listener func(ev Event, snap models.FlowSnapshot)

// Source is the image the next upload will send.
type Source struct {
	Kind  models.SourceKind
	Image *Image
	Ref   string
}

// Machine owns the state of one upload flow. State changes only through
// Apply (or Begin, which applies EventUploadStarted).
type Machine struct {
	mu        sync.Mutex
	snap      models.FlowSnapshot
	dropped   *Image
	sample    string
	listeners []Listener
	now       func() time.Time
}

// NewMachine returns an idle machine.
func NewMachine(id string) *Machine {
	m := &Machine{now: time.Now}
	m.snap = models.FlowSnapshot{
		ID:        id,
		Status:    models.UploadStatusIdle,
		UpdatedAt: m.now(),
	}
	return m
}

// Subscribe registers a listener for every applied event.
func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// ID returns the flow id.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.ID
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() models.FlowSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copySnapshot()
}

// Source returns the active image source, if any.
func (m *Machine) Source() (Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.dropped != nil:
		img := *m.dropped
		return Source{Kind: models.SourceDropped, Image: &img}, true
	case m.sample != "":
		return Source{Kind: models.SourceSample, Ref: m.sample}, true
	}
	return Source{}, false
}

// Drop makes img the active source, clearing any sample selection.
func (m *Machine) Drop(img Image) bool {
	return m.Apply(Event{Kind: EventImageDropped, Image: &img})
}

// Begin starts a new upload. It fails with a busy error while another
// upload of this machine is still in flight.
func (m *Machine) Begin() (uint64, *FlowError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.Loading {
		return 0, NewError(KindBusy, "upload.begin", MsgBusy)
	}
	ev := Event{Kind: EventUploadStarted, Generation: m.snap.Generation + 1}
	m.apply(ev)
	return ev.Generation, nil
}

// Apply applies ev and reports whether it changed anything. Stale
// upload-scoped events are dropped.
func (m *Machine) Apply(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Kind == EventUploadStarted {
		// Only Begin may start an upload.
		return false
	}
	return m.apply(ev)
}

func (m *Machine) apply(ev Event) bool {
	if ev.Kind.uploadScoped() && ev.Generation != m.snap.Generation {
		return false
	}

	s := &m.snap
	switch ev.Kind {
	case EventImageDropped:
		if ev.Image == nil {
			return false
		}
		img := *ev.Image
		m.dropped = &img
		m.sample = ""
		s.Highlighted = ""
		s.Source = models.SourceDropped
		s.Preview = img.Name
		s.ShowDescription = false

	case EventSampleHighlighted:
		if ev.Ref == "" {
			return false
		}
		s.Highlighted = ev.Ref

	case EventSampleConfirmed:
		if s.Highlighted == "" {
			return false
		}
		m.sample = s.Highlighted
		m.dropped = nil
		ev.Ref = m.sample
		s.Source = models.SourceSample
		s.Preview = m.sample
		s.ShowDescription = false
		s.Description = ""

	case EventUploadStarted:
		s.Generation = ev.Generation
		s.Status = models.UploadStatusSending
		s.Loading = true
		s.Description = ""
		s.ShowDescription = true
		s.ShowToast = false
		s.ShowClaim = false
		s.LastError = ""

	case EventChunkReceived:
		if s.Status != models.UploadStatusSending {
			return false
		}
		s.Description += ev.Text

	case EventStreamCompleted:
		if s.Status != models.UploadStatusSending {
			return false
		}
		s.Status = models.UploadStatusUploaded

	case EventToastShown:
		s.ShowToast = true

	case EventClaimResolved:
		if ev.Claim == nil {
			return false
		}
		s.Claim = copyDetails(ev.Claim)
		s.ShowClaim = true

	case EventUploadFailed:
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		}

	case EventUploadFinished:
		s.Loading = false

	default:
		return false
	}

	if ev.At.IsZero() {
		ev.At = m.now()
	}
	s.UpdatedAt = ev.At

	snap := m.copySnapshot()
	for _, l := range m.listeners {
		l(ev, snap)
	}
	return true
}

func (m *Machine) copySnapshot() models.FlowSnapshot {
	snap := m.snap
	snap.Claim = copyDetails(m.snap.Claim)
	return snap
}

func copyDetails(d *models.ClaimDetails) *models.ClaimDetails {
	if d == nil {
		return nil
	}
	cp := &models.ClaimDetails{
		Description:    d.Description,
		Recommendation: make([]string, len(d.Recommendation)),
	}
	copy(cp.Recommendation, d.Recommendation)
	return cp
}
