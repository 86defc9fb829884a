package services

import (
	"context"
	"io"

	"github.com/foundry/pkgdemo/internal/core/models"
)

// PackageStore is the in-memory package registry.
type PackageStore interface {
	// FindByID looks up a visible record, ignoring case. Pending records are not returned.
	FindByID(id string) (models.PackageRecord, bool)

	// List returns every visible record in insertion order.
	List() []models.PackageSummary

	// Upsert creates or fully replaces a record and reports whether it was created.
	Upsert(id string, totalDownloads int64, versions []models.VersionRecord) bool

	// UpsertRecord is Upsert that also returns the stored record as of the write.
	UpsertRecord(id string, totalDownloads int64, versions []models.VersionRecord) (models.PackageRecord, bool)

	// Patch replaces the fields present in patch. It returns false if the id is unknown.
	Patch(id string, patch models.PackagePatch) bool

	// Delete removes a record and reports whether it existed.
	Delete(id string) bool

	// Upload registers a pending record and returns its pending id.
	Upload(d models.PackageDescriptor) (string, error)

	// UploadStatus advances the upload identified by pendingID by one step.
	UploadStatus(pendingID string) (models.UploadStatus, string)

	// Stats returns record counts for metrics.
	Stats() StoreStats
}

// StoreStats counts records by visibility.
type StoreStats struct {
	Packages       int
	PendingUploads int
}

// Journal records package events.
type Journal interface {
	// Record appends an event.
	Record(ctx context.Context, e models.PackageEvent) error

	// History returns the events for a package id, oldest first.
	History(ctx context.Context, packageID string) ([]models.PackageEvent, error)

	// Ping checks the journal backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the journal.
	Close() error
}

// DescriptorArchive keeps raw upload payloads, addressed by their SHA-256 digest.
type DescriptorArchive interface {
	// Store streams a payload to the archive and returns its hex digest and size.
	Store(r io.Reader) (digest string, size int64, err error)

	// Open returns a ReadCloser for the payload with the given digest.
	Open(digest string) (io.ReadCloser, error)

	// Exists checks if a payload with the given digest exists.
	Exists(digest string) bool
}

// Authenticator validates request tokens.
type Authenticator interface {
	// ValidateToken checks if a token is valid.
	ValidateToken(token string) bool

	// Enabled reports whether any token is configured.
	Enabled() bool
}
