// handlers_proxy.go - Pass-through routes to the vision/agent backend
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/leafy-insurance/claims-backend/internal/client"
)

const proxyCopyBuffer = 32 * 1024

// ProxyConfig is resolved once at startup.
type ProxyConfig struct {
	BaseURL string
	Source  string
	Client  *http.Client
	Logger  *log.Logger
}

// ProxyHandlerImpl implements the ProxyHandler interface
type ProxyHandlerImpl struct {
	baseURL     string
	client      *http.Client
	imageLogger *log.Logger
	agentLogger *log.Logger
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(cfg ProxyConfig) ProxyHandler {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = client.NewHTTPClient()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ProxyHandlerImpl{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      httpClient,
		imageLogger: logger.WithPrefix("image-descriptor"),
		agentLogger: logger.WithPrefix("run-agent"),
	}
}

// HandleImageDescriptor forwards the multipart upload as is and streams the
// description back chunk by chunk.
func (h *ProxyHandlerImpl) HandleImageDescriptor(c echo.Context) error {
	req := c.Request()
	target := h.baseURL + client.BackendPaths.Describe
	h.imageLogger.Info("proxying request", "target", target)

	contentType := req.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(strings.ToLower(contentType), echo.MIMEMultipartForm) {
		err := errors.New("request body is not multipart/form-data")
		h.imageLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}

	upstream, err := http.NewRequestWithContext(req.Context(), http.MethodPost, target, req.Body)
	if err != nil {
		h.imageLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}
	upstream.Header.Set(echo.HeaderContentType, contentType)
	if req.ContentLength > 0 {
		upstream.ContentLength = req.ContentLength
	}

	resp, err := h.client.Do(upstream)
	if err != nil {
		h.imageLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		details := MsgUnknownBackendError
		if data, err := io.ReadAll(resp.Body); err == nil {
			details = string(data)
		}
		h.imageLogger.Error("backend error", "status", resp.StatusCode, "details", details)
		return c.JSON(resp.StatusCode, ImageProxyError{
			Error:   MsgProcessImageFailed,
			Status:  resp.StatusCode,
			Details: details,
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlain)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	res.WriteHeader(resp.StatusCode)
	res.Flush()

	buf := make([]byte, proxyCopyBuffer)
	var written int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := res.Write(buf[:n]); err != nil {
				h.imageLogger.Warn("client went away", "bytes", written, "err", err)
				return nil
			}
			res.Flush()
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			// Headers are out; the truncated body is all the caller gets.
			h.imageLogger.Error("stream interrupted", "bytes", written, "err", readErr)
			return nil
		}
	}

	h.imageLogger.Debug("stream complete", "bytes", written)
	return nil
}

// HandleRunAgent triggers the agent workflow and relays the claim document.
func (h *ProxyHandlerImpl) HandleRunAgent(c echo.Context) error {
	target := h.baseURL + client.BackendPaths.RunAgent
	h.agentLogger.Info("proxying request", "target", target)

	upstream, err := http.NewRequestWithContext(c.Request().Context(), http.MethodPost, target, nil)
	if err != nil {
		h.agentLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}
	upstream.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	resp, err := h.client.Do(upstream)
	if err != nil {
		h.agentLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)

	if !isSuccess(resp.StatusCode) {
		if readErr != nil || !validJSON(data) {
			h.agentLogger.Error("backend error", "status", resp.StatusCode, "body", "unparseable")
			return c.JSON(resp.StatusCode, AgentFallbackError{Detail: MsgAgentFailed})
		}
		h.agentLogger.Error("backend error", "status", resp.StatusCode, "body", string(data))
		return c.Blob(resp.StatusCode, echo.MIMEApplicationJSON, data)
	}

	if readErr != nil {
		h.agentLogger.Error("proxy error", "err", readErr)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: readErr.Error()})
	}
	var doc any
	if err := sonic.Unmarshal(data, &doc); err != nil {
		h.agentLogger.Error("proxy error", "err", err)
		return c.JSON(http.StatusInternalServerError, ConnectError{Error: MsgBackendUnreachable, Details: err.Error()})
	}

	h.agentLogger.Info("retrieved claim document")
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func validJSON(data []byte) bool {
	var v any
	return sonic.Unmarshal(data, &v) == nil
}
