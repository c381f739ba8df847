package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/report"
	"github.com/Muthahireen/clairvoyant/internal/repository"
)

// multipartOverhead leaves room for boundaries and part headers on top of the file itself.
const multipartOverhead = 64 << 10

func (h *handler) createAnalysis(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	if c.Request.ContentLength > h.maxUploadSize+multipartOverhead {
		h.uploadTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.uploadTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > h.maxUploadSize {
		h.uploadTooLarge(c)
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		h.uploadTooLarge(c)
		return
	}

	analysis, err := h.analyses.AnalyzeImage(c.Request.Context(), identity.UserID, file.Filename, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysisResponse(analysis))
}

func (h *handler) uploadTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("upload exceeds the %d MiB limit", h.maxUploadSize>>20),
	})
}

func (h *handler) listAnalyses(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	analyses, err := h.analyses.ListAnalyses(c.Request.Context(), identity.UserID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		items = append(items, analysisResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"analyses": items})
}

func (h *handler) getAnalysis(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	analysis, err := h.analyses.GetAnalysis(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisResponse(analysis))
}

func (h *handler) getDuplicates(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}

	dupReport, err := h.analyses.GetDuplicateReport(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	duplicates := make([]gin.H, 0, len(dupReport.Duplicates))
	for _, d := range dupReport.Duplicates {
		duplicates = append(duplicates, gin.H{
			"request_id": d.RequestID,
			"label":      d.Label,
			"confidence": d.Confidence,
			"created_at": d.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id":      dupReport.Analysis.RequestID,
		"sha256":          dupReport.Analysis.SHA256Hash,
		"is_duplicate":    len(duplicates) > 0,
		"duplicate_count": len(duplicates),
		"duplicates":      duplicates,
	})
}

func (h *handler) getPrescription(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	ctx := c.Request.Context()

	analysis, err := h.analyses.GetAnalysis(ctx, identity.UserID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.accounts.GetProfile(ctx, identity.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	pdf, err := report.Prescription(analysis, user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *handler) manualPrediction(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	var features inference.Features
	if err := c.ShouldBindJSON(&features); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	analysis, err := h.analyses.AnalyzeManual(c.Request.Context(), identity.UserID, features)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysisResponse(analysis))
}

func (h *handler) insights(c *gin.Context) {
	identity := mustIdentity(c)
	if identity == nil {
		return
	}
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	insights, err := h.analyses.GetInsights(c.Request.Context(), identity.UserID, days)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// queryInt reads an optional positive integer query parameter. Zero means absent.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return value, true
}

func analysisResponse(a *repository.Analysis) gin.H {
	return gin.H{
		"request_id":            a.RequestID,
		"source":                a.Source,
		"file_name":             a.FileName,
		"content_type":          a.ContentType,
		"sha256":                a.SHA256Hash,
		"label":                 a.Label,
		"confidence":            a.Confidence,
		"model_version":         a.ModelVersion,
		"processing_latency_ms": a.ProcessingLatencyMs,
		"summary":               fmt.Sprintf("Prediction: %s (%.0f%% confidence)", a.Label, a.Confidence*100),
		"created_at":            a.CreatedAt,
	}
}
