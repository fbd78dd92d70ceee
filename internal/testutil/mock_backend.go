// mock_backend.go - Fake vision/agent backend for testing
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// DefaultAgentBody is the claim document the mock agent returns.
const DefaultAgentBody = `{"description":"flood damage","recommendation":["dispatch adjuster","request photos"],"claimId":"c-1"}`

// UploadRecord captures one /imageDescriptor request.
type UploadRecord struct {
	FormContentType string
	FileName        string
	FileContentType string
	Data            []byte
}

// MockBackend serves /imageDescriptor and /runAgent from canned responses.
type MockBackend struct {
	mu sync.Mutex

	describeStatus int
	describeBody   string
	chunks         []string
	gate           chan struct{}

	agentStatus int
	agentBody   string

	uploads          []UploadRecord
	agentCalls       int
	agentContentType string
	agentBodyLen     int

	server *httptest.Server
}

// NewMockBackend starts a mock backend closed at test cleanup.
func NewMockBackend(t testing.TB) *MockBackend {
	t.Helper()
	m := &MockBackend{
		describeStatus: http.StatusOK,
		chunks:         []string{"The photo shows ", "water damage."},
		agentStatus:    http.StatusOK,
		agentBody:      DefaultAgentBody,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/imageDescriptor", m.handleDescribe)
	mux.HandleFunc("/runAgent", m.handleRunAgent)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the backend base URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// SetChunks sets the description stream, written and flushed one by one.
func (m *MockBackend) SetChunks(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
}

// SetDescribeError makes /imageDescriptor answer status with body.
func (m *MockBackend) SetDescribeError(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeStatus = status
	m.describeBody = body
}

// SetAgentResponse sets the /runAgent status and body.
func (m *MockBackend) SetAgentResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentStatus = status
	m.agentBody = body
}

// HoldAfterFirstChunk pauses the stream after the first chunk until the
// returned func is called.
func (m *MockBackend) HoldAfterFirstChunk() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	var once sync.Once
	gate := m.gate
	return func() { once.Do(func() { close(gate) }) }
}

// Uploads returns the recorded uploads.
func (m *MockBackend) Uploads() []UploadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadRecord(nil), m.uploads...)
}

// AgentCalls returns how many times /runAgent was hit.
func (m *MockBackend) AgentCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentCalls
}

// AgentRequest returns the Content-Type and body length of the last agent call.
func (m *MockBackend) AgentRequest() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentContentType, m.agentBodyLen
}

func (m *MockBackend) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	record := UploadRecord{FormContentType: r.Header.Get("Content-Type")}
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if file, header, err := r.FormFile("file"); err == nil {
			record.FileName = header.Filename
			record.FileContentType = header.Header.Get("Content-Type")
			record.Data, _ = io.ReadAll(file)
			file.Close()
		}
	}

	m.mu.Lock()
	m.uploads = append(m.uploads, record)
	status, body := m.describeStatus, m.describeBody
	chunks := append([]string(nil), m.chunks...)
	gate := m.gate
	m.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		io.WriteString(w, body)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for i, chunk := range chunks {
		io.WriteString(w, chunk)
		if flusher != nil {
			flusher.Flush()
		}
		if i == 0 && gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
	}
}

func (m *MockBackend) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.agentCalls++
	m.agentContentType = r.Header.Get("Content-Type")
	m.agentBodyLen = len(data)
	status, body := m.agentStatus, m.agentBody
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
