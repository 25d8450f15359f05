// Package preview serves the annotated frames of an active run as an
// MJPEG stream, with a JSON status endpoint alongside. It observes the
// pipeline; it never feeds frames back into it.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/crowdmark/crowdmark/internal/logger"
	"github.com/crowdmark/crowdmark/internal/pipeline"
)

const jpegQuality = 90

// Status is the live run snapshot served at /status.
type Status struct {
	Input           string    `json:"input"`
	FramesProcessed int       `json:"frames_processed"`
	TotalDetections int       `json:"total_detections"`
	LastFrameAt     time.Time `json:"last_frame_at"`
	Clients         int       `json:"clients"`
}

// Server streams annotated frames over HTTP while a run is active.
type Server struct {
	addr   string
	router *mux.Router
	srv    *http.Server

	statusMu sync.RWMutex
	status   Status

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}
}

// NewServer creates a preview server listening on addr once started.
func NewServer(addr string) *Server {
	s := &Server{
		addr:    addr,
		router:  mux.NewRouter(),
		clients: make(map[chan []byte]struct{}),
	}
	s.router.HandleFunc("/stream", s.handleStream).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	return s
}

// Start begins serving in the background.
func (s *Server) Start(input string) error {
	s.statusMu.Lock()
	s.status = Status{Input: input}
	s.statusMu.Unlock()

	s.srv = &http.Server{Addr: s.addr, Handler: s.router}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithComponent("preview").Error().Err(err).Msg("preview server stopped")
		}
	}()
	logger.WithComponent("preview").Info().Str("addr", s.addr).Msg("preview available")
	return nil
}

// Stop shuts the server down and disconnects all clients.
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	s.clientsMu.Unlock()

	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// PublishFrame encodes an annotated frame as JPEG and fans it out to
// connected clients. Slow clients drop frames rather than stall the
// pipeline.
func (s *Server) PublishFrame(frame *pipeline.Frame, dets []pipeline.Detection) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		logger.WithComponent("preview").Warn().Err(err).Msg("jpeg encode failed")
		return
	}
	data := buf.Bytes()

	s.statusMu.Lock()
	s.status.FramesProcessed = frame.Index + 1
	s.status.TotalDetections += len(dets)
	s.status.LastFrameAt = time.Now()
	s.statusMu.Unlock()

	s.clientsMu.RLock()
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
	s.clientsMu.RUnlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()

	s.clientsMu.RLock()
	status.Clients = len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	frameChan := make(chan []byte, 2)

	s.clientsMu.Lock()
	s.clients[frameChan] = struct{}{}
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, frameChan)
		s.clientsMu.Unlock()
	}()

	for data := range frameChan {
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
