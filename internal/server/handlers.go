package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/jd-analyzer/internal/analysis"
	"github.com/jonathan/jd-analyzer/internal/db"
	"github.com/jonathan/jd-analyzer/internal/ingestion"
)

// analyzeRequest is the request body for POST /api/analyze
type analyzeRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// analyzeResponse is the accepted-response body for POST /api/analyze
type analyzeResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// handleAnalyze accepts a job description by content or URL, stores it, and
// starts its analysis in the background. Responds 202 with the id; clients
// poll the status endpoint for progress.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if (req.Content == "") == (req.URL == "") {
		s.errorResponse(w, http.StatusBadRequest, "exactly one of 'content' or 'url' is required")
		return
	}

	content := req.Content
	title := req.Title
	if req.URL != "" {
		ingested, metadata, err := ingestion.IngestFromURL(r.Context(), req.URL, false)
		if err != nil {
			s.errorResponse(w, http.StatusBadGateway, fmt.Sprintf("failed to ingest URL: %v", err))
			return
		}
		content = ingested
		if title == "" {
			title = metadata.Title
		}
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	jd, err := s.analyzer.Submit(r.Context(), titlePtr, content)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit job description: %v", err))
		return
	}

	// The analysis outlives this request; the request context would cancel it.
	go func() {
		if err := s.analyzer.StartAnalysis(context.Background(), jd.ID); err != nil {
			log.Printf("Error: analysis of %s failed: %v", jd.ID, err)
		}
	}()

	s.jsonResponse(w, http.StatusAccepted, analyzeResponse{ID: jd.ID, Status: jd.Status})
}

// handleStatus reports the lifecycle status and progress of a JD
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	status, err := s.analyzer.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "job description not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, status)
}

// handleResults returns the assembled analysis of a COMPLETED JD. Unfinished
// and FAILED analyses respond 409; there are no partial results.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	status, err := s.analyzer.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "job description not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch status.Status {
	case db.StatusCompleted:
	case db.StatusFailed:
		s.errorResponse(w, http.StatusConflict, "analysis failed, no results available")
		return
	default:
		s.errorResponse(w, http.StatusConflict, fmt.Sprintf("analysis is %s, results are not ready", status.Status))
		return
	}

	result, err := s.analyzer.GetResults(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// pathID parses the {id} path segment as a UUID, responding 400 on failure
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}
