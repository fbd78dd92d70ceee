package session

import (
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/leafy-insurance/claims-backend/internal/claim"
)

// DefaultFlowTTL is how long an untouched flow is kept.
const DefaultFlowTTL = 30 * time.Minute

// Deps are shared by every flow the manager creates.
type Deps struct {
	Gateway claim.Gateway
	Fetcher claim.SampleFetcher
	Lister  claim.SampleLister
	Options claim.FlowOptions
	Logger  *log.Logger
}

// Entry is one live claim flow.
type Entry struct {
	ID        string
	Machine   *claim.Machine
	Flow      *claim.Flow
	Picker    *claim.Picker
	CreatedAt time.Time
}

// Manager keeps live flows in memory until they expire or are removed.
type Manager struct {
	flows  *ttlworker.Cache[string, *Entry]
	deps   Deps
	logger *log.Logger
}

// NewManager creates a flow registry whose entries expire after ttl.
func NewManager(ttl time.Duration, deps Deps) *Manager {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		flows:  ttlworker.NewCache[string, *Entry](ttl),
		deps:   deps,
		logger: logger.WithPrefix("session"),
	}
}

// Create registers a new flow reporting to reporter.
func (m *Manager) Create(reporter claim.Reporter) *Entry {
	id := uuid.New().String()
	machine := claim.NewMachine(id)

	opts := m.deps.Options
	opts.Reporter = reporter
	if opts.Logger == nil {
		opts.Logger = m.deps.Logger
	}

	entry := &Entry{
		ID:        id,
		Machine:   machine,
		Flow:      claim.NewFlow(machine, m.deps.Gateway, m.deps.Fetcher, opts),
		Picker:    claim.NewPicker(machine, m.deps.Lister),
		CreatedAt: time.Now(),
	}

	m.flows.Set(id, entry)

	m.logger.Debug("flow created", "flow", shortID(id))
	return entry
}

// Get looks up a live flow.
func (m *Manager) Get(id string) (*Entry, bool) {
	entry := m.flows.Get(id)
	return entry, entry != nil
}

// Remove drops a flow from the registry.
func (m *Manager) Remove(id string) {
	m.flows.Delete(id)
	m.logger.Debug("flow removed", "flow", shortID(id))
}

// shortID safely truncates an ID for logging
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
