package models

// PutPackageRequest is the body of a full replace. Both fields are required.
type PutPackageRequest struct {
	TotalDownloads *int64          `json:"totalDownloads"`
	Versions       []VersionRecord `json:"versions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// DeprecatedResponse mirrors the short error body of retired endpoints.
type DeprecatedResponse struct {
	Error string `json:"error"`
}

type PackageWithVersionSummaries struct {
	ID       string           `json:"id"`
	Versions []VersionSummary `json:"versions"`
}

type PackageWithVersionDetails struct {
	ID       string          `json:"id"`
	Versions []VersionRecord `json:"versions"`
}

type PackageStatistics struct {
	ID             string `json:"id"`
	TotalDownloads int64  `json:"totalDownloads"`
}

type UploadAccepted struct {
	PendingID string `json:"pendingId"`
	Digest    string `json:"digest,omitempty"`
}

type UploadStatusResponse struct {
	Status    UploadStatus `json:"status"`
	PackageID string       `json:"packageId,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}
