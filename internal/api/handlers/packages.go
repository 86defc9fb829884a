package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/util/logging"
	"github.com/foundry/pkgdemo/internal/util/versioning"
)

const deprecatedMessage = "This endpoint is deprecated."

// ListPackagesDeprecated handles GET /api/v1/packages
func (h *Handler) ListPackagesDeprecated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusGone, models.DeprecatedResponse{Error: deprecatedMessage})
}

// PackagesByIDDeprecated handles GET /api/v0.1/packagesbyid
func (h *Handler) PackagesByIDDeprecated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, deprecatedMessage)
}

// GetPackageV1 handles GET /api/v1/packages/{id}
func (h *Handler) GetPackageV1(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	summaries := make([]models.VersionSummary, len(rec.Versions))
	for i, v := range rec.Versions {
		summaries[i] = models.VersionSummary{
			Version:       v.Version,
			Description:   v.Description,
			RepositoryURL: v.RepositoryURL,
			Owner:         v.Owner,
		}
	}
	writeJSON(w, http.StatusOK, models.PackageWithVersionSummaries{ID: rec.ID, Versions: summaries})
}

// ListPackages handles GET /api/v2/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r.URL.Query(), "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	take, err := queryInt(r.URL.Query(), "take", h.opts.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.opts.MaxPageSize > 0 && take > h.opts.MaxPageSize {
		take = h.opts.MaxPageSize
	}

	all := h.store.List()
	if skip > len(all) {
		skip = len(all)
	}
	end := len(all)
	if take < end-skip {
		end = skip + take
	}
	writeJSON(w, http.StatusOK, all[skip:end])
}

// GetPackage handles GET /api/v2/packages/{id}
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, details(rec))
}

// GetStatistics handles GET /api/v2/packages/{id}/statistics
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.PackageStatistics{ID: rec.ID, TotalDownloads: rec.TotalDownloads})
}

// GetVersion handles GET /api/v2/packages/{id}/versions/{version}
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	want := pathParam(r, "version")
	names := make([]string, len(rec.Versions))
	for i, v := range rec.Versions {
		names[i] = v.Version
	}
	i := versioning.Find(names, want)
	if i < 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("version %s of package %s not found", want, rec.ID))
		return
	}
	writeJSON(w, http.StatusOK, rec.Versions[i])
}

// GetHistory handles GET /api/v2/packages/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "a non-empty package ID is required")
		return
	}
	events, err := h.journal.History(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("package", id).Msg("failed to read journal")
		writeError(w, http.StatusInternalServerError, "failed to read package history")
		return
	}
	if events == nil {
		events = []models.PackageEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// PutPackage handles PUT /api/v2/packages/{id}
func (h *Handler) PutPackage(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "a non-empty package ID is required")
		return
	}
	var req models.PutPackageRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validatePut(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, created := h.store.UpsertRecord(id, *req.TotalDownloads, req.Versions)
	if created {
		h.record(r, rec.ID, models.ActionCreated, "")
		w.Header().Set("Location", "/api/v2/packages/"+url.PathEscape(rec.ID))
		writeJSON(w, http.StatusCreated, details(rec))
		return
	}
	h.record(r, rec.ID, models.ActionReplaced, "")
	writeJSON(w, http.StatusOK, details(rec))
}

// PatchPackage handles PATCH /api/v2/packages/{id}
func (h *Handler) PatchPackage(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "a non-empty package ID is required")
		return
	}
	var patch models.PackagePatch
	if !h.decode(w, r, &patch) {
		return
	}
	if patch.TotalDownloads != nil && *patch.TotalDownloads < 0 {
		writeError(w, http.StatusBadRequest, (&services.ValidationError{Field: "totalDownloads", Reason: "must not be negative"}).Error())
		return
	}
	if patch.Versions != nil {
		if err := validateVersions(*patch.Versions); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if !h.store.Patch(id, patch) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("package %s not found", id))
		return
	}
	h.record(r, id, models.ActionPatched, patchDetail(patch))
	w.WriteHeader(http.StatusNoContent)
}

// DeletePackage handles DELETE /api/v2/packages/{id}
func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id != "" && h.store.Delete(id) {
		h.record(r, id, models.ActionDeleted, "")
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the {id} parameter to a visible record, writing the error
// response itself when there is none.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (models.PackageRecord, bool) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "a non-empty package ID is required")
		return models.PackageRecord{}, false
	}
	rec, ok := h.store.FindByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("package %s not found", id))
		return models.PackageRecord{}, false
	}
	return rec, true
}

// decode reads a JSON body no larger than MaxUploadBytes into v.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// record logs a package change and appends it to the journal. Journal
// failures are logged and otherwise ignored.
func (h *Handler) record(r *http.Request, packageID, action, detail string) {
	logger := h.logger.With().
		Str("request_id", logging.RequestID(r.Context())).
		Str("package", packageID).
		Str("action", action).
		Logger()
	logger.Info().Str("detail", detail).Msg("package changed")

	err := h.journal.Record(r.Context(), models.PackageEvent{
		PackageID: packageID,
		Action:    action,
		Detail:    detail,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to record journal event")
	}
}

func validatePut(req models.PutPackageRequest) error {
	if req.TotalDownloads == nil {
		return &services.ValidationError{Field: "totalDownloads", Reason: "is required"}
	}
	if *req.TotalDownloads < 0 {
		return &services.ValidationError{Field: "totalDownloads", Reason: "must not be negative"}
	}
	if req.Versions == nil {
		return &services.ValidationError{Field: "versions", Reason: "is required"}
	}
	return validateVersions(req.Versions)
}

func validateVersions(vs []models.VersionRecord) error {
	for i, v := range vs {
		if strings.TrimSpace(v.Version) == "" {
			return &services.ValidationError{Field: fmt.Sprintf("versions[%d].version", i), Reason: "is required"}
		}
	}
	return nil
}

func patchDetail(p models.PackagePatch) string {
	var fields []string
	if p.TotalDownloads != nil {
		fields = append(fields, "totalDownloads")
	}
	if p.Versions != nil {
		fields = append(fields, "versions")
	}
	return strings.Join(fields, ",")
}

func details(rec models.PackageRecord) models.PackageWithVersionDetails {
	versions := rec.Versions
	if versions == nil {
		versions = []models.VersionRecord{}
	}
	return models.PackageWithVersionDetails{ID: rec.ID, Versions: versions}
}

func queryInt(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
