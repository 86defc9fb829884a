package models

import "time"

// VersionRecord describes one published version of a package.
type VersionRecord struct {
	Version       string `json:"version"`
	Description   string `json:"description"`
	Readme        string `json:"readme"`
	LicenseURL    string `json:"licenseUrl"`
	License       string `json:"license"`
	ProjectURL    string `json:"projectUrl"`
	IconURL       string `json:"iconUrl"`
	RepositoryURL string `json:"repositoryUrl"`
	Owner         string `json:"owner"`
}

// UploadState is the lifecycle of a record created through the upload flow.
//
//	pending   -> processed   (first status poll)
//	processed -> settled     (second status poll, pending id released)
//
// Records created by upsert start settled and never leave that state.
type UploadState int

const (
	UploadSettled UploadState = iota
	UploadPending
	UploadProcessed
)

func (s UploadState) String() string {
	switch s {
	case UploadPending:
		return "pending"
	case UploadProcessed:
		return "processed"
	default:
		return "settled"
	}
}

// Upload tracks a simulated asynchronous upload. PendingID is set exactly
// when State is not UploadSettled.
type Upload struct {
	State     UploadState
	PendingID string
}

// PackageRecord is a package registration held by the store.
type PackageRecord struct {
	ID             string
	TotalDownloads int64
	Versions       []VersionRecord
	Upload         Upload
}

// Pending reports whether the record is hidden from readers.
func (p PackageRecord) Pending() bool {
	return p.Upload.State == UploadPending
}

// Clone returns a copy that shares no slice storage with p.
func (p PackageRecord) Clone() PackageRecord {
	c := p
	if p.Versions != nil {
		c.Versions = append([]VersionRecord(nil), p.Versions...)
	}
	return c
}

// PackagePatch carries the fields of a partial update. Nil fields are left
// untouched; a non-nil Versions replaces the whole sequence, even when empty.
type PackagePatch struct {
	TotalDownloads *int64           `json:"totalDownloads"`
	Versions       *[]VersionRecord `json:"versions"`
}

// PackageSummary is a list entry: the id and the first version's description.
type PackageSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// VersionSummary is the short form of a version used by uploads and the v1 API.
type VersionSummary struct {
	Version       string `json:"version"`
	Description   string `json:"description"`
	RepositoryURL string `json:"repositoryUrl"`
	Owner         string `json:"owner"`
}

// Record expands the summary into a full VersionRecord with empty extended fields.
func (v VersionSummary) Record() VersionRecord {
	return VersionRecord{
		Version:       v.Version,
		Description:   v.Description,
		RepositoryURL: v.RepositoryURL,
		Owner:         v.Owner,
	}
}

// PackageDescriptor is the payload of an upload request.
type PackageDescriptor struct {
	ID       string           `json:"id"`
	Versions []VersionSummary `json:"versions"`
}

// UploadStatus is the result of polling a pending upload.
type UploadStatus int

const (
	UploadNotFound UploadStatus = iota
	UploadInProgress
	UploadCompleted
)

func (s UploadStatus) String() string {
	switch s {
	case UploadInProgress:
		return "InProgress"
	case UploadCompleted:
		return "Completed"
	default:
		return "NotFound"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s UploadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Journal actions.
const (
	ActionCreated         = "created"
	ActionReplaced        = "replaced"
	ActionPatched         = "patched"
	ActionDeleted         = "deleted"
	ActionUploadPending   = "upload_pending"
	ActionUploadCompleted = "upload_completed"
)

// PackageEvent is one journal entry for a package.
type PackageEvent struct {
	ID         int64     `json:"id"`
	PackageID  string    `json:"packageId"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
