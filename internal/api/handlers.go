package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/models"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/report"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/service"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/storage"
)

// Handler serves the review dashboard API
type Handler struct {
	exceptionRepo *repository.ExceptionRepository
	invoiceRepo   *repository.InvoiceRepository
	reviewService *service.ReviewService
	store         storage.DocumentStore
	exporter      *report.ExceptionExporter
	logger        *zap.Logger
}

// NewHandler creates an API handler
func NewHandler(
	exceptionRepo *repository.ExceptionRepository,
	invoiceRepo *repository.InvoiceRepository,
	reviewService *service.ReviewService,
	store storage.DocumentStore,
	exporter *report.ExceptionExporter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		exceptionRepo: exceptionRepo,
		invoiceRepo:   invoiceRepo,
		reviewService: reviewService,
		store:         store,
		exporter:      exporter,
		logger:        logger,
	}
}

// RegisterRoutes attaches the API routes to the router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Root)

	api := router.Group("/api")
	{
		api.GET("/exceptions", h.ListExceptions)
		api.GET("/exceptions/export", h.ExportExceptions)
		api.GET("/exceptions/:id", h.GetException)
		api.PUT("/exceptions/:id", h.ReviewException)
		api.GET("/exceptions/:id/pdf", h.GetExceptionPDF)
		api.GET("/stats", h.GetStats)
		api.GET("/invoices/all", h.ListInvoices)
	}
}

// Root reports service identity and health
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "invoice-accelerator",
		"status":  "healthy",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// ListExceptions returns exceptions filtered by query parameters
func (h *Handler) ListExceptions(c *gin.Context) {
	filter := models.ExceptionFilter{
		Status:       c.Query("status"),
		Severity:     c.Query("severity"),
		StartDate:    c.Query("start_date"),
		EndDate:      c.Query("end_date"),
		SupplierName: c.Query("supplier"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		filter.Limit = limit
	}

	exceptions, err := h.exceptionRepo.List(filter)
	if err != nil {
		h.logger.Error("Failed to list exceptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list exceptions"})
		return
	}
	if exceptions == nil {
		exceptions = []*models.InvoiceException{}
	}

	c.JSON(http.StatusOK, gin.H{
		"exceptions": exceptions,
		"count":      len(exceptions),
	})
}

// GetException returns one exception with its latest review
func (h *Handler) GetException(c *gin.Context) {
	exc, err := h.exceptionRepo.GetByID(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get exception", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get exception"})
		return
	}
	if exc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exception not found"})
		return
	}

	c.JSON(http.StatusOK, exc)
}

type reviewRequest struct {
	Status     string `json:"status" binding:"required"`
	ReviewedBy string `json:"reviewed_by" binding:"required"`
	Comments   string `json:"comments"`
}

// ReviewException records a reviewer decision on an exception
func (h *Handler) ReviewException(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status and reviewed_by are required"})
		return
	}

	updated, err := h.reviewService.SubmitReview(c.Param("id"), req.Status, req.ReviewedBy, req.Comments)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExceptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "exception not found"})
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to submit review", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit review"})
		}
		return
	}

	c.JSON(http.StatusOK, updated)
}

// GetExceptionPDF streams the original invoice document inline
func (h *Handler) GetExceptionPDF(c *gin.Context) {
	exc, err := h.exceptionRepo.GetByID(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get exception", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get exception"})
		return
	}
	if exc == nil || exc.StorageURI == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	content, err := h.store.Read(exc.StorageURI)
	if err != nil {
		h.logger.Error("Failed to read document",
			zap.String("exception_id", exc.ExceptionID),
			zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	filename := exc.Filename
	if filename == "" {
		filename = "invoice.pdf"
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "application/pdf", content)
}

// ExportExceptions returns the filtered exception listing as a workbook
func (h *Handler) ExportExceptions(c *gin.Context) {
	filter := models.ExceptionFilter{
		Status:       c.Query("status"),
		Severity:     c.Query("severity"),
		StartDate:    c.Query("start_date"),
		EndDate:      c.Query("end_date"),
		SupplierName: c.Query("supplier"),
		Limit:        1000,
	}

	exceptions, err := h.exceptionRepo.List(filter)
	if err != nil {
		h.logger.Error("Failed to list exceptions for export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export exceptions"})
		return
	}

	data, err := h.exporter.Export(exceptions)
	if err != nil {
		h.logger.Error("Failed to generate export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export exceptions"})
		return
	}

	filename := fmt.Sprintf("exceptions_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetStats returns the 30-day exception dashboard aggregates
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.reviewService.Stats()
	if err != nil {
		h.logger.Error("Failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListInvoices returns recently processed clean invoices
func (h *Handler) ListInvoices(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	invoices, err := h.invoiceRepo.ListRecent(limit)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices"})
		return
	}
	if invoices == nil {
		invoices = []*models.ProcessedInvoice{}
	}

	c.JSON(http.StatusOK, gin.H{
		"invoices": invoices,
		"count":    len(invoices),
	})
}
