// Package transport exposes the converter over HTTP. Handlers validate and
// translate; every slow operation runs in the background and is observed
// through ticket state.
package transport

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/annotation"
	"go-dataset-converter/internal/config"
	apperrors "go-dataset-converter/internal/errors"
	"go-dataset-converter/internal/logger"
	"go-dataset-converter/internal/storage"
	"go-dataset-converter/internal/ticket"
	"go-dataset-converter/internal/upload"
)

// Handler holds the dependencies of the HTTP surface.
type Handler struct {
	store    *ticket.Store
	pipeline *upload.Pipeline
	files    *storage.LocalStore
	cfg      *config.Config
}

// NewHandler builds the gin engine with all routes registered.
func NewHandler(store *ticket.Store, pipeline *upload.Pipeline, files *storage.LocalStore, cfg *config.Config) *gin.Engine {
	h := &Handler{store: store, pipeline: pipeline, files: files, cfg: cfg}

	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	router.GET("/health", h.health)
	router.POST("/upload", requestSizeLimiter(cfg.MaxUploadSize), h.upload)
	router.GET("/status", h.status)
	router.POST("/cancel", h.cancel)
	router.GET("/download", h.download)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "dataset-converter",
		"tickets": h.store.Len(),
	})
}

// upload receives a multipart dataset archive and registers or refreshes
// the session's ticket. Request-shape problems are rejected synchronously;
// everything that requires reading the archive is deferred to the
// background jobs and surfaces through /status.
func (h *Handler) upload(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		respondError(c, apperrors.NewValidationError("session_id is required", nil))
		return
	}
	if !storage.ValidTicketID(sessionID) {
		respondError(c, apperrors.NewValidationError("session_id must be usable as a directory name", nil))
		return
	}

	inputFormat := c.PostForm("input_format")
	if inputFormat == "" {
		respondError(c, apperrors.NewValidationError("input_format is required", nil))
		return
	}

	featureType := ticket.FeatureType(c.DefaultPostForm("feature_type", string(ticket.FeatureConvertOnly)))
	if !featureType.Supported() {
		respondError(c, apperrors.NewValidationError("unsupported feature_type: "+string(featureType), nil))
		return
	}

	targetFormat := annotation.TargetFormat(c.PostForm("target_format"))
	if targetFormat != "" && !targetFormat.Supported() {
		respondError(c, apperrors.NewValidationError("unsupported target_format: "+string(targetFormat), nil))
		return
	}

	rawParams := c.DefaultPostForm("feature_params", "{}")
	if !json.Valid([]byte(rawParams)) {
		respondError(c, apperrors.NewValidationError("feature_params must be valid JSON", nil))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperrors.NewValidationError("file is required", err))
		return
	}

	h.store.CreateOrUpdate(sessionID, ticket.CreateOptions{
		InputFormat:  inputFormat,
		TargetFormat: targetFormat,
		FeatureType:  featureType,
		RawParams:    json.RawMessage(rawParams),
	})

	src, err := fileHeader.Open()
	if err != nil {
		h.store.MarkError(sessionID, "Could not open uploaded file.")
		respondError(c, apperrors.NewInternalError("could not open uploaded file", err))
		return
	}
	defer src.Close()

	received, err := h.pipeline.Receive(sessionID, src)
	if err != nil {
		respondError(c, apperrors.NewInternalError("upload failed: "+err.Error(), err))
		return
	}

	logger.WithFields(logrus.Fields{
		"ticket_id":    sessionID,
		"feature_type": featureType,
		"bytes":        received,
	}).Info("Upload accepted")

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"ticket_id":      sessionID,
		"state":          ticket.StateUploaded,
		"bytes_received": received,
		"message":        "Upload received, processing started.",
	})
}

// status reports the ticket snapshot. Unknown tickets are not an error:
// clients poll after downloads and cancellations, so a missing ticket gets
// a 200 with state "unknown".
func (h *Handler) status(c *gin.Context) {
	ticketID := c.Query("ticket_id")
	if ticketID == "" {
		respondError(c, apperrors.NewValidationError("ticket_id is required", nil))
		return
	}

	snap, ok := h.store.Snapshot(ticketID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"ticket_id": ticketID,
			"state":     ticket.StateUnknown,
			"message":   "No such ticket.",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// cancel marks the ticket cancelled and removes it with its files. A job
// already running for the ticket notices the removal at its next liveness
// check and discards its work.
func (h *Handler) cancel(c *gin.Context) {
	ticketID := c.Query("ticket_id")
	if ticketID == "" {
		respondError(c, apperrors.NewValidationError("ticket_id is required", nil))
		return
	}

	ok := h.store.Mutate(ticketID, func(t *ticket.Ticket) {
		t.State = ticket.StateCancelled
		t.ErrorMessage = "Cancelled by user."
	})
	if !ok {
		respondError(c, apperrors.NewNotFoundError("no such ticket: "+ticketID, nil))
		return
	}
	h.store.DeleteWithFiles(ticketID)

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"ticket_id": ticketID,
		"state":     ticket.StateCancelled,
	})
}

// download streams the output archive and then retires the ticket. The
// ticket and its files are gone after a successful download; a repeat
// request gets a 404.
func (h *Handler) download(c *gin.Context) {
	ticketID := c.Query("ticket_id")
	if ticketID == "" {
		respondError(c, apperrors.NewValidationError("ticket_id is required", nil))
		return
	}

	snap, ok := h.store.Snapshot(ticketID)
	if !ok || snap.State != ticket.StateReady || snap.OutputZipPath == "" {
		respondError(c, apperrors.NewNotFoundError("no output ready for ticket: "+ticketID, nil))
		return
	}
	if _, err := os.Stat(snap.OutputZipPath); err != nil {
		respondError(c, apperrors.NewNotFoundError("output archive missing for ticket: "+ticketID, err))
		return
	}

	c.FileAttachment(snap.OutputZipPath, ticketID+"_output.zip")
	h.store.DeleteWithFiles(ticketID)
}

func respondError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"status":  "error",
		"type":    err.Type,
		"message": err.Message,
	})
}
