package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/foundry/pkgdemo/internal/core/models"
)

// ParseDescriptor decodes a raw upload payload. It fails when the payload is
// not a JSON object or carries no package id.
func ParseDescriptor(raw []byte) (models.PackageDescriptor, error) {
	var d models.PackageDescriptor
	if len(bytes.TrimSpace(raw)) == 0 {
		return d, &ValidationError{Field: "descriptor", Reason: "empty payload"}
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, &ValidationError{Field: "descriptor", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return d, &ValidationError{Field: "id", Reason: "a non-empty package ID is required"}
	}
	return d, nil
}
