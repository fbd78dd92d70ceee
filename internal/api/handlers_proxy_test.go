package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafy-insurance/claims-backend/internal/logging"
	"github.com/leafy-insurance/claims-backend/internal/testutil"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.JSONSerializer = SonicSerializer{}
	return e
}

func newProxy(baseURL string) ProxyHandler {
	return NewProxyHandler(ProxyConfig{BaseURL: baseURL, Logger: logging.Discard()})
}

func imageForm(t *testing.T, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func closedServerURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestHandleImageDescriptor_StreamsDescription(t *testing.T) {
	backend := testutil.NewMockBackend(t)
	backend.SetChunks("AB", "CD")
	h := newProxy(backend.URL())
	e := newTestEcho()

	body, contentType := imageForm(t, "car.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/image-descriptor", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, h.HandleImageDescriptor(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ABCD", rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/plain"))
	}

	uploads := backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, contentType, uploads[0].FormContentType)
	assert.Equal(t, "car.png", uploads[0].FileName)
	assert.Equal(t, "image/png", uploads[0].FileContentType)
	assert.Equal(t, []byte("png-bytes"), uploads[0].Data)
}

func TestHandleImageDescriptor_FlushesEachChunk(t *testing.T) {
	backend := testutil.NewMockBackend(t)
	backend.SetChunks("AB", "CD")
	release := backend.HoldAfterFirstChunk()
	defer release()

	e := newTestEcho()
	e.POST("/api/image-descriptor", newProxy(backend.URL()).HandleImageDescriptor)
	srv := httptest.NewServer(e)
	defer srv.Close()

	body, contentType := imageForm(t, "car.png", "image/png", []byte("png-bytes"))
	resp, err := http.Post(srv.URL+"/api/image-descriptor", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	first := make(chan string, 1)
	go func() {
		buf := make([]byte, 2)
		n, _ := io.ReadFull(resp.Body, buf)
		first <- string(buf[:n])
	}()

	select {
	case chunk := <-first:
		assert.Equal(t, "AB", chunk)
	case <-time.After(5 * time.Second):
		t.Fatal("first chunk was not flushed before the stream ended")
	}

	release()
	rest, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "CD", string(rest))
}

func TestHandleImageDescriptor_BackendErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		details string
	}{
		{"bad gateway", http.StatusBadGateway, "bad gateway", "bad gateway"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":"not an image"}`, `{"detail":"not an image"}`},
		{"empty body", http.StatusInternalServerError, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewMockBackend(t)
			backend.SetDescribeError(tt.status, tt.body)
			h := newProxy(backend.URL())
			e := newTestEcho()

			body, contentType := imageForm(t, "car.jpg", "image/jpeg", []byte("jpeg"))
			req := httptest.NewRequest(http.MethodPost, "/api/image-descriptor", body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, h.HandleImageDescriptor(c))
			assert.Equal(t, tt.status, rec.Code)

			var got ImageProxyError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, ImageProxyError{Error: MsgProcessImageFailed, Status: tt.status, Details: tt.details}, got)
		})
	}
}

func TestHandleImageDescriptor_UnreadableErrorBody(t *testing.T) {
	// The backend promises 100 bytes, sends 3 and hangs up.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 502 Bad Gateway\r\nContent-Type: text/plain\r\nContent-Length: 100\r\n\r\nbad")
		buf.Flush()
	}))
	t.Cleanup(backend.Close)

	h := newProxy(backend.URL)
	e := newTestEcho()

	body, contentType := imageForm(t, "car.jpg", "image/jpeg", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/image-descriptor", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleImageDescriptor(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var got ImageProxyError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ImageProxyError{Error: MsgProcessImageFailed, Status: http.StatusBadGateway, Details: MsgUnknownBackendError}, got)
}

func TestHandleImageDescriptor_ConnectFailure(t *testing.T) {
	h := newProxy(closedServerURL())
	e := newTestEcho()

	body, contentType := imageForm(t, "car.jpg", "image/jpeg", []byte("jpeg"))
	req := httptest.NewRequest(http.MethodPost, "/api/image-descriptor", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleImageDescriptor(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var got ConnectError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, MsgBackendUnreachable, got.Error)
	assert.NotEmpty(t, got.Details)
}

func TestHandleImageDescriptor_RejectsNonMultipart(t *testing.T) {
	backend := testutil.NewMockBackend(t)
	h := newProxy(backend.URL())
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/image-descriptor", strings.NewReader(`{"file":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleImageDescriptor(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgBackendUnreachable)
	assert.Empty(t, backend.Uploads())
}

func TestHandleRunAgent(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{"success relayed verbatim", http.StatusOK, testutil.DefaultAgentBody, http.StatusOK, testutil.DefaultAgentBody},
		{"json error relayed", http.StatusInternalServerError, `{"detail":"graph failed"}`, http.StatusInternalServerError, `{"detail":"graph failed"}`},
		{"non-json error replaced", http.StatusServiceUnavailable, "<html>down</html>", http.StatusServiceUnavailable, `{"detail":"Agent processing failed"}`},
		{"invalid success body", http.StatusOK, "not json", http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewMockBackend(t)
			backend.SetAgentResponse(tt.status, tt.body)
			h := newProxy(backend.URL())
			e := newTestEcho()

			req := httptest.NewRequest(http.MethodPost, "/api/run-agent", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, h.HandleRunAgent(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), MsgBackendUnreachable)
			}

			contentType, size := backend.AgentRequest()
			assert.Equal(t, echo.MIMEApplicationJSON, contentType)
			assert.Zero(t, size)
			assert.Equal(t, 1, backend.AgentCalls())
		})
	}
}

func TestHandleRunAgent_ConnectFailure(t *testing.T) {
	h := newProxy(closedServerURL())
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/api/run-agent", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleRunAgent(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var got ConnectError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, MsgBackendUnreachable, got.Error)
	assert.NotEmpty(t, got.Details)
}
