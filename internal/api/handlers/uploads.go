package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/telemetry"
	"github.com/foundry/pkgdemo/internal/util/logging"
)

// UploadPackage handles POST /api/v2/uploads
func (h *Handler) UploadPackage(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With().Str("request_id", logging.RequestID(r.Context())).Logger()

	body := r.Body
	if h.opts.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		h.metrics.UploadsTotal.WithLabelValues(telemetry.UploadRejected).Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload body")
		return
	}

	desc, err := services.ParseDescriptor(raw)
	if err != nil {
		h.metrics.UploadsTotal.WithLabelValues(telemetry.UploadRejected).Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pendingID, err := h.store.Upload(desc)
	if err != nil {
		h.metrics.UploadsTotal.WithLabelValues(telemetry.UploadRejected).Inc()
		switch {
		case errors.Is(err, services.ErrConflict):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error().Err(err).Str("package", desc.ID).Msg("upload failed")
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}
	h.metrics.UploadsTotal.WithLabelValues(telemetry.UploadAccepted).Inc()

	resp := models.UploadAccepted{PendingID: pendingID}
	if h.archive != nil {
		digest, size, err := h.archive.Store(bytes.NewReader(raw))
		if err != nil {
			logger.Warn().Err(err).Str("package", desc.ID).Msg("failed to archive upload descriptor")
		} else {
			resp.Digest = digest
			logger.Debug().Str("digest", digest).Int64("size", size).Msg("upload descriptor archived")
		}
	}
	h.record(r, desc.ID, models.ActionUploadPending, pendingID)

	logger.Info().
		Str("package", desc.ID).
		Str("pending_id", pendingID).
		Int("versions", len(desc.Versions)).
		Msg("upload accepted")

	w.Header().Set("Location", "/api/v2/uploads/"+url.PathEscape(pendingID))
	writeJSON(w, http.StatusAccepted, resp)
}

// GetUploadStatus handles GET /api/v2/uploads/{pendingID}
func (h *Handler) GetUploadStatus(w http.ResponseWriter, r *http.Request) {
	pendingID := pathParam(r, "pendingID")
	status, packageID := h.store.UploadStatus(pendingID)

	switch status {
	case models.UploadInProgress:
		writeJSON(w, http.StatusAccepted, models.UploadStatusResponse{Status: status})
	case models.UploadCompleted:
		h.metrics.UploadsTotal.WithLabelValues(telemetry.UploadCompleted).Inc()
		h.record(r, packageID, models.ActionUploadCompleted, pendingID)
		w.Header().Set("Location", "/api/v2/packages/"+url.PathEscape(packageID))
		writeJSON(w, http.StatusOK, models.UploadStatusResponse{Status: status, PackageID: packageID})
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("upload %s not found", pendingID))
	}
}

// GetDescriptor handles GET /api/v2/descriptors/{digest}
func (h *Handler) GetDescriptor(w http.ResponseWriter, r *http.Request) {
	digest := pathParam(r, "digest")
	if h.archive == nil || !h.archive.Exists(digest) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("descriptor %s not found", digest))
		return
	}
	rc, err := h.archive.Open(digest)
	if err != nil {
		h.logger.Error().Err(err).Str("digest", digest).Msg("failed to open archived descriptor")
		writeError(w, http.StatusInternalServerError, "failed to read descriptor")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", `"`+digest+`"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}
