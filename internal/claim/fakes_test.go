package claim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// chunkReader returns one chunk per Read, then err (io.EOF by default).
type chunkReader struct {
	chunks [][]byte
	err    error
	closed bool
	onRead func(i int)
	i      int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.i < len(r.chunks) {
		if r.onRead != nil {
			r.onRead(r.i)
		}
		n := copy(p, r.chunks[r.i])
		r.i++
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	return 0, io.EOF
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	stream      *chunkReader
	nilStream   bool
	describeErr error
	agent       *models.AgentResult
	agentErr    error
	onAgent     func()
	trace       *[]string
	images      []Image
	agentCalls  int
}

func (g *fakeGateway) Describe(ctx context.Context, img Image) (io.ReadCloser, error) {
	g.mu.Lock()
	g.images = append(g.images, img)
	g.mu.Unlock()
	g.record("describe")
	if g.describeErr != nil {
		return nil, g.describeErr
	}
	if g.nilStream {
		return nil, nil
	}
	return g.stream, nil
}

func (g *fakeGateway) RunAgent(ctx context.Context) (*models.AgentResult, error) {
	g.mu.Lock()
	g.agentCalls++
	g.mu.Unlock()
	g.record("agent")
	if g.onAgent != nil {
		g.onAgent()
	}
	if g.agentErr != nil {
		return nil, g.agentErr
	}
	return g.agent, nil
}

func (g *fakeGateway) record(step string) {
	if g.trace != nil {
		*g.trace = append(*g.trace, step)
	}
}

type fakeSamples struct {
	img  Image
	err  error
	refs []string
}

func (s *fakeSamples) FetchSample(ctx context.Context, ref string) (Image, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil {
		return Image{}, s.err
	}
	return s.img, nil
}

type fakeLister struct {
	names []string
	err   error
	calls int
}

func (l *fakeLister) ListSamples(ctx context.Context) ([]string, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.names, nil
}

// manualScheduler captures deferred callbacks so tests fire them explicitly.
type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
	trace  *[]string
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
	if s.trace != nil {
		*s.trace = append(*s.trace, "schedule")
	}
}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	funcs := append([]func(){}, s.funcs...)
	s.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	alerts   []string
	notices  []string
	failures []*FlowError
}

func (r *recordingReporter) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, message)
}

func (r *recordingReporter) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, message)
}

func (r *recordingReporter) Failure(err *FlowError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")

func strPtr(s string) *string { return &s }

func slicePtr(s ...string) *[]string { return &s }
