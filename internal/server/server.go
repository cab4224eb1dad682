// Package server exposes the prediction pipeline over HTTP.
//
// All error translation happens here: callers get specific messages for
// validation and not-found conditions, and a generic body for internal
// failures. Raw internal error text never reaches a response.
package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hurttlocker/gavel/internal/dataset"
	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/retrain"
	"github.com/hurttlocker/gavel/internal/service"
	"github.com/hurttlocker/gavel/internal/store"
)

// maxDocumentBytes caps uploaded document size.
const maxDocumentBytes = 16 << 20

// Server holds the pipeline components behind the HTTP API.
type Server struct {
	svc      *service.Service
	analyzer *model.Analyzer
	st       store.Store
	files    *dataset.Files
	runner   *retrain.Runner
}

// New creates a Server over the given components.
func New(svc *service.Service, analyzer *model.Analyzer, st store.Store, files *dataset.Files, runner *retrain.Runner) *Server {
	return &Server{svc: svc, analyzer: analyzer, st: st, files: files, runner: runner}
}

// Router builds the gin engine with all API routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.POST("/predict", s.handlePredict)
	api.POST("/analyze-document", s.handleAnalyzeDocument)
	api.GET("/case/:id", s.handleGetCase)
	api.GET("/history", s.handleHistory)
	api.GET("/stats", s.handleStats)
	api.POST("/dataset/prepare", s.handlePrepareDataset)
	api.GET("/export", s.handleExport)

	return r
}

func (s *Server) handlePredict(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	stored, err := s.svc.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case_id":     stored.ID,
		"verdict":     stored.Verdict,
		"confidence":  stored.ConfidenceScore,
		"case_number": stored.CaseNumber,
	})
}

func (s *Server) handleAnalyzeDocument(c *gin.Context) {
	text, ok := s.readDocument(c)
	if !ok {
		return
	}

	analysis, err := s.analyzer.Analyze(c.Request.Context(), text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// readDocument extracts document text from a multipart "file" field or,
// absent one, the raw request body. Writes the error response itself when
// it returns ok=false.
func (s *Server) readDocument(c *gin.Context) (string, bool) {
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxDocumentBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "document too large"})
			return "", false
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file upload"})
			return "", false
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file upload"})
			return "", false
		}
		return string(data), true
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no document provided"})
		return "", false
	}
	return string(data), true
}

func (s *Server) handleGetCase(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return
	}

	stored, err := s.svc.GetCase(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *Server) handleHistory(c *gin.Context) {
	cases, err := s.svc.History(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if cases == nil {
		cases = []*store.Case{}
	}
	c.JSON(http.StatusOK, cases)
}

func (s *Server) handleStats(c *gin.Context) {
	cases, err := s.st.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dataset.ComputeStatistics(cases))
}

func (s *Server) handlePrepareDataset(c *gin.Context) {
	report, err := s.runner.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleExport(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or csv"})
		return
	}

	cases, err := s.st.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	path, err := s.files.ExportCases(cases, format)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "cases": len(cases)})
}

// writeError maps pipeline errors to HTTP responses. Validation and
// not-found conditions carry specific messages; everything else collapses
// to a generic internal error.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingDescription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
	case errors.Is(err, model.ErrBadInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "input text is empty or not valid UTF-8"})
	case errors.Is(err, dataset.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no cases available for dataset preparation"})
	case errors.Is(err, store.ErrDuplicateCaseNumber):
		c.JSON(http.StatusConflict, gin.H{"error": "case number already exists"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
	case errors.Is(err, dataset.ErrNoTrainingData):
		c.JSON(http.StatusNotFound, gin.H{"error": "no training data found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
