package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/util/ids"
)

// Store is a concurrency-safe, in-memory package registry. Ids are compared
// after Unicode case folding.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	pending map[string]string // pending id -> entry key
	seq     uint64
	newID   func() string
}

type entry struct {
	seq    uint64
	record models.PackageRecord
}

var _ services.PackageStore = (*Store)(nil)

// New creates a Store holding a copy of seed, in the given order.
func New(seed []models.PackageRecord) *Store {
	s := &Store{
		entries: make(map[string]*entry, len(seed)),
		pending: make(map[string]string),
		newID:   uuid.NewString,
	}
	for _, rec := range seed {
		s.Upsert(rec.ID, rec.TotalDownloads, rec.Versions)
	}
	return s
}

func key(id string) string {
	return ids.Key(id)
}

func (s *Store) FindByID(id string) (models.PackageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key(id)]
	if !ok || e.record.Pending() {
		return models.PackageRecord{}, false
	}
	return e.record.Clone(), true
}

func (s *Store) List() []models.PackageSummary {
	s.mu.RLock()
	visible := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.record.Pending() {
			visible = append(visible, e)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].seq < visible[j].seq })

	out := make([]models.PackageSummary, len(visible))
	for i, e := range visible {
		out[i] = models.PackageSummary{ID: e.record.ID}
		if len(e.record.Versions) > 0 {
			out[i].Description = e.record.Versions[0].Description
		}
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) Upsert(id string, totalDownloads int64, versions []models.VersionRecord) bool {
	_, created := s.UpsertRecord(id, totalDownloads, versions)
	return created
}

func (s *Store) UpsertRecord(id string, totalDownloads int64, versions []models.VersionRecord) (models.PackageRecord, bool) {
	versions = cloneVersions(versions)

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key(id)]; ok {
		e.record.TotalDownloads = totalDownloads
		e.record.Versions = versions
		return e.record.Clone(), false
	}
	rec := models.PackageRecord{
		ID:             id,
		TotalDownloads: totalDownloads,
		Versions:       versions,
	}
	s.insert(rec)
	return rec.Clone(), true
}

func (s *Store) Patch(id string, patch models.PackagePatch) bool {
	var versions []models.VersionRecord
	if patch.Versions != nil {
		versions = cloneVersions(*patch.Versions)
		if versions == nil {
			versions = []models.VersionRecord{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key(id)]
	if !ok {
		return false
	}
	if patch.TotalDownloads != nil {
		e.record.TotalDownloads = *patch.TotalDownloads
	}
	if patch.Versions != nil {
		e.record.Versions = versions
	}
	return true
}

func (s *Store) Delete(id string) bool {
	k := key(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		return false
	}
	if pid := e.record.Upload.PendingID; pid != "" {
		delete(s.pending, pid)
	}
	delete(s.entries, k)
	return true
}

// Upload registers d as a pending record. An id that is already registered,
// pending or not, is rejected with ErrConflict.
func (s *Store) Upload(d models.PackageDescriptor) (string, error) {
	if d.ID == "" {
		return "", &services.ValidationError{Field: "id", Reason: "a non-empty package ID is required"}
	}
	versions := make([]models.VersionRecord, len(d.Versions))
	for i, v := range d.Versions {
		versions[i] = v.Record()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key(d.ID)]; ok {
		return "", fmt.Errorf("%w: package %s is already registered", services.ErrConflict, d.ID)
	}

	pid := s.newID()
	for _, taken := s.pending[pid]; taken; _, taken = s.pending[pid] {
		pid = s.newID()
	}
	s.insert(models.PackageRecord{
		ID:       d.ID,
		Versions: versions,
		Upload:   models.Upload{State: models.UploadPending, PendingID: pid},
	})
	return pid, nil
}

// UploadStatus moves a pending upload to processed (reported as InProgress)
// and a processed one to settled (reported as Completed with the package id).
func (s *Store) UploadStatus(pendingID string) (models.UploadStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.pending[pendingID]
	if !ok {
		return models.UploadNotFound, ""
	}
	e := s.entries[k]

	switch e.record.Upload.State {
	case models.UploadPending:
		e.record.Upload.State = models.UploadProcessed
		return models.UploadInProgress, ""
	case models.UploadProcessed:
		e.record.Upload = models.Upload{State: models.UploadSettled}
		delete(s.pending, pendingID)
		return models.UploadCompleted, e.record.ID
	default:
		// Settled records are never indexed by a pending id.
		delete(s.pending, pendingID)
		return models.UploadNotFound, ""
	}
}

func (s *Store) Stats() services.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st services.StoreStats
	for _, e := range s.entries {
		if e.record.Pending() {
			st.PendingUploads++
		} else {
			st.Packages++
		}
	}
	return st
}

// insert adds a new entry. Callers hold s.mu.
func (s *Store) insert(rec models.PackageRecord) {
	s.seq++
	k := key(rec.ID)
	s.entries[k] = &entry{seq: s.seq, record: rec}
	if rec.Upload.PendingID != "" {
		s.pending[rec.Upload.PendingID] = k
	}
}

func cloneVersions(v []models.VersionRecord) []models.VersionRecord {
	if v == nil {
		return nil
	}
	return append(make([]models.VersionRecord, 0, len(v)), v...)
}
