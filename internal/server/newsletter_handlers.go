package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"reach/internal/document"
	"reach/internal/mailer"
	"reach/internal/newsletter"
)

// PreviewResponse is the JSON form of a preview.
type PreviewResponse struct {
	Subject   string             `json:"subject"`
	Sections  []document.Section `json:"sections"`
	HTML      string             `json:"html"`
	PDFBase64 []byte             `json:"pdfBase64"`
}

// SendRequest is the body of POST /api/newsletter/send.
type SendRequest struct {
	Year        int  `json:"year"`
	Month       int  `json:"month"`
	DryRun      bool `json:"dryRun"`
	UseTemplate bool `json:"useTemplate"`
}

// SendResponse reports a send run. PDFBase64 is never raw binary.
type SendResponse struct {
	Subject   string             `json:"subject"`
	Sections  []document.Section `json:"sections"`
	Sent      *mailer.Outcome    `json:"sent,omitempty"`
	PDFBase64 []byte             `json:"pdfBase64"`
}

// handlePreview handles GET /api/newsletter/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := parseMonth(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	useTemplate, err := parseBool(q, "template")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "json" {
		s.respondError(w, http.StatusBadRequest, "format must be html or json")
		return
	}
	skipPDF := format == "html"
	if format == "json" {
		if skipPDF, err = parseBool(q, "skipPdf"); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := s.generator.Generate(r.Context(), newsletter.Options{
		Year:        year,
		Month:       month,
		DryRun:      true,
		SkipPDF:     skipPDF,
		UseTemplate: useTemplate,
	})
	if err != nil {
		s.log.Error("Failed to generate preview", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate newsletter")
		return
	}

	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, result.HTML); err != nil {
			s.log.Error("Failed to write preview", "error", err)
		}
		return
	}

	s.respondJSON(w, http.StatusOK, PreviewResponse{
		Subject:   result.Subject,
		Sections:  result.Sections,
		HTML:      result.HTML,
		PDFBase64: result.PDF,
	})
}

// handlePDF handles GET /api/newsletter/pdf. Rendering is always forced.
func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, month, err := parseMonth(q)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	useTemplate, err := parseBool(q, "template")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.generator.Generate(r.Context(), newsletter.Options{
		Year:        year,
		Month:       month,
		DryRun:      true,
		SkipPDF:     false,
		UseTemplate: useTemplate,
	})
	if err != nil {
		s.log.Error("Failed to generate newsletter for pdf", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate newsletter")
		return
	}
	if len(result.PDF) == 0 {
		s.respondError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, result.PDFFilename()))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.PDF); err != nil {
		s.log.Error("Failed to write pdf", "error", err)
	}
}

// handleSend handles POST /api/newsletter/send
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validateMonth(req.Year, req.Month); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.generator.Generate(r.Context(), newsletter.Options{
		Year:        req.Year,
		Month:       req.Month,
		DryRun:      req.DryRun,
		UseTemplate: req.UseTemplate,
	})
	if err != nil {
		s.log.Error("Failed to generate newsletter for send", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to generate newsletter")
		return
	}

	s.respondJSON(w, http.StatusOK, SendResponse{
		Subject:   result.Subject,
		Sections:  result.Sections,
		Sent:      result.Sent,
		PDFBase64: result.PDF,
	})
}
