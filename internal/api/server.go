/**
 * HTTP API for the Receipt OCR Worker
 *
 * Thin JSON surface over the pipeline and the queue: synchronous extraction
 * for small interactive uploads, enqueueing for everything else, plus health
 * and taxonomy endpoints.
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/receiptflow/receipt-worker/internal/input"
	"github.com/receiptflow/receipt-worker/internal/logging"
	"github.com/receiptflow/receipt-worker/internal/pipeline"
	"github.com/receiptflow/receipt-worker/internal/queue"
)

// Enqueuer submits jobs for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.ReceiptJob) (string, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) bool

// ServerConfig wires the API's dependencies.
type ServerConfig struct {
	Addr        string
	MaxFileSize int64
	Enhance     bool

	Extractor queue.Extractor
	Enqueuer  Enqueuer             // optional, nil disables /enqueue
	Tracker   *queue.StatusTracker // optional, nil disables /jobs lookups
	OCRReady  HealthChecker
	DBReady   HealthChecker // optional
}

// Server serves the receipt extraction HTTP API.
type Server struct {
	httpServer *http.Server
	config     *ServerConfig
	log        *logging.Logger
}

// NewServer builds the API server and its routes.
func NewServer(cfg *ServerConfig) *Server {
	s := &Server{
		config: cfg,
		log:    logging.NewLogger("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/enqueue", s.handleEnqueue)
	mux.HandleFunc("/categories", s.handleCategories)
	mux.HandleFunc("/jobs/", s.handleJobResult)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP API listening", "addr", s.config.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ocrReady := s.config.OCRReady != nil && s.config.OCRReady(ctx)
	status := map[string]interface{}{
		"status":              "ok",
		"tesseract_available": ocrReady,
	}
	if s.config.DBReady != nil {
		status["database_available"] = s.config.DBReady(ctx)
	}
	if !ocrReady {
		status["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, status)
}

// processRequest is the JSON body of POST /process and /enqueue.
type processRequest struct {
	Image          string `json:"image"`
	UserID         string `json:"user_id,omitempty"`
	Filename       string `json:"filename,omitempty"`
	EnhanceQuality *bool  `json:"enhance_quality,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	data, _, enhance, err := s.readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.config.Extractor.Process(r.Context(), data, enhance)
	if !result.Success {
		// Unreadable but decodable images are a semantic failure, not a bad
		// request; decode failures are the caller's problem.
		code := http.StatusUnprocessableEntity
		if result.ErrorMessage != "" && isDecodeFailure(result.ErrorMessage) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.config.Enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, "queue not configured")
		return
	}

	var req processRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.config.MaxFileSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	enhance := s.config.Enhance
	if req.EnhanceQuality != nil {
		enhance = *req.EnhanceQuality
	}

	jobID, err := s.config.Enqueuer.Enqueue(r.Context(), queue.ReceiptJob{
		UserID:         req.UserID,
		Filename:       req.Filename,
		Source:         input.Classify(req.Image),
		EnhanceQuality: enhance,
	})
	if err != nil {
		s.log.Error("enqueue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "queued",
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	names := make([]string, 0, len(pipeline.Categories)+1)
	for _, c := range pipeline.Categories {
		names = append(names, c.Name)
	}
	names = append(names, pipeline.CategoryOther)
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": names})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.config.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "job tracking not configured")
		return
	}

	jobID := r.URL.Path[len("/jobs/"):]
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	data, err := s.config.Tracker.GetResult(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no result for job %s", jobID))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// readImage accepts either a JSON body with a base64/data-URL image or a
// multipart upload under the "receiptImage" field.
func (s *Server) readImage(r *http.Request) (data []byte, filename string, enhance bool, err error) {
	enhance = s.config.Enhance

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.config.MaxFileSize); err != nil {
			return nil, "", false, fmt.Errorf("invalid multipart form")
		}
		file, header, err := r.FormFile("receiptImage")
		if err != nil {
			return nil, "", false, fmt.Errorf("receiptImage file field is required")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, s.config.MaxFileSize))
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to read upload")
		}
		return data, header.Filename, enhance, nil
	}

	var req processRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.config.MaxFileSize)).Decode(&req); err != nil {
		return nil, "", false, fmt.Errorf("invalid JSON body")
	}
	if req.Image == "" {
		return nil, "", false, fmt.Errorf("image is required")
	}
	if req.EnhanceQuality != nil {
		enhance = *req.EnhanceQuality
	}

	src := input.Classify(req.Image)
	if src.Kind != input.KindBase64 && src.Kind != input.KindDataURL {
		return nil, "", false, fmt.Errorf("synchronous processing accepts base64 or data URL images only")
	}
	data, err = src.Resolve(r.Context(), nil)
	if err != nil {
		return nil, "", false, err
	}
	return data, req.Filename, enhance, nil
}

func isDecodeFailure(message string) bool {
	return strings.HasPrefix(message, "DECODE_FAILED")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
