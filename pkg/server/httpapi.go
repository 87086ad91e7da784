// ABOUTME: HTTP transport: streamable MCP, the JSON tool endpoint, metrics and health
// ABOUTME: POST /api/mcp {"tool","input"} answers {"result"} or {"error"} with a status code

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/calendar-mcp/pkg/logging"
)

const maxRequestBytes = 1 << 20

// APIRequest is the body of POST /api/mcp
type APIRequest struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// APIResponse carries either a tool result or an error
type APIResponse struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath("/mcp")))
	mux.HandleFunc("/api/mcp", s.handleAPI)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPI(w, http.StatusMethodNotAllowed, APIResponse{Error: "Method not allowed"})
		return
	}

	var req APIRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeAPI(w, http.StatusBadRequest, APIResponse{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}
	if req.Tool == "" {
		writeAPI(w, http.StatusBadRequest, APIResponse{Error: "Missing tool name"})
		return
	}

	result, err := s.CallTool(r.Context(), req.Tool, req.Input)
	switch {
	case errors.Is(err, ErrUnknownTool):
		writeAPI(w, http.StatusNotFound, APIResponse{Error: fmt.Sprintf("Unknown tool: %s", req.Tool)})
	case err != nil:
		s.logger.Error("tool call failed", logging.Tool(req.Tool), logging.Err(err))
		writeAPI(w, http.StatusInternalServerError, APIResponse{Error: err.Error()})
	case result.IsError:
		writeAPI(w, http.StatusInternalServerError, APIResponse{Error: ResultText(result)})
	default:
		writeAPI(w, http.StatusOK, APIResponse{Result: ResultText(result)})
	}
}

func writeAPI(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe serves Handler on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http transport listening", slog.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
