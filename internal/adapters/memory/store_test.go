package memory

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
)

func versions(vs ...string) []models.VersionRecord {
	out := make([]models.VersionRecord, len(vs))
	for i, v := range vs {
		out[i] = models.VersionRecord{Version: v, Description: "release " + v}
	}
	return out
}

func TestUpsertCreatesThenReplaces(t *testing.T) {
	s := New(nil)

	assert.True(t, s.Upsert("mylib", 10, versions("1.0.0")))
	assert.False(t, s.Upsert("mylib", 20, versions("2.0.0", "1.0.0")))

	rec, ok := s.FindByID("mylib")
	require.True(t, ok)
	assert.Equal(t, "mylib", rec.ID)
	assert.Equal(t, int64(20), rec.TotalDownloads)
	assert.Equal(t, versions("2.0.0", "1.0.0"), rec.Versions)
}

func TestUpsertPreservesOriginalID(t *testing.T) {
	s := New(nil)
	s.Upsert("Foo", 1, nil)
	s.Upsert("FOO", 2, nil)

	rec, ok := s.FindByID("foo")
	require.True(t, ok)
	assert.Equal(t, "Foo", rec.ID)
	assert.Equal(t, int64(2), rec.TotalDownloads)
}

func TestFindByIDIsCaseInsensitive(t *testing.T) {
	s := New(nil)
	s.Upsert("Foo", 1, versions("1.0.0"))

	for _, id := range []string{"foo", "FOO", "fOo"} {
		_, ok := s.FindByID(id)
		assert.True(t, ok, "FindByID(%q)", id)
	}
	_, ok := s.FindByID("bar")
	assert.False(t, ok)
}

func TestFindByIDReturnsCopy(t *testing.T) {
	s := New(nil)
	s.Upsert("mylib", 1, versions("1.0.0"))

	rec, _ := s.FindByID("mylib")
	rec.Versions[0].Version = "mutated"

	again, _ := s.FindByID("mylib")
	assert.Equal(t, "1.0.0", again.Versions[0].Version)
}

func TestUpsertDoesNotAliasCallerSlice(t *testing.T) {
	s := New(nil)
	vs := versions("1.0.0")
	s.Upsert("mylib", 1, vs)
	vs[0].Version = "mutated"

	rec, _ := s.FindByID("mylib")
	assert.Equal(t, "1.0.0", rec.Versions[0].Version)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New(nil)
	s.Upsert("mylib", 1, nil)

	assert.True(t, s.Delete("MYLIB"))
	assert.False(t, s.Delete("mylib"))

	_, ok := s.FindByID("mylib")
	assert.False(t, ok)
}

func TestPatchAbsentCreatesNothing(t *testing.T) {
	s := New(nil)
	n := int64(5)

	assert.False(t, s.Patch("ghost", models.PackagePatch{TotalDownloads: &n}))
	_, ok := s.FindByID("ghost")
	assert.False(t, ok)
	assert.Empty(t, s.List())
}

func TestPatchReplacesOnlyPresentFields(t *testing.T) {
	s := New(nil)
	s.Upsert("mylib", 1, versions("1.0.0", "0.9.0"))

	n := int64(42)
	require.True(t, s.Patch("mylib", models.PackagePatch{TotalDownloads: &n}))
	rec, _ := s.FindByID("mylib")
	assert.Equal(t, int64(42), rec.TotalDownloads)
	assert.Equal(t, versions("1.0.0", "0.9.0"), rec.Versions)

	replacement := versions("2.0.0")
	require.True(t, s.Patch("mylib", models.PackagePatch{Versions: &replacement}))
	rec, _ = s.FindByID("mylib")
	assert.Equal(t, int64(42), rec.TotalDownloads)
	assert.Equal(t, versions("2.0.0"), rec.Versions)
}

func TestPatchEmptyVersionsClearsSequence(t *testing.T) {
	s := New(nil)
	s.Upsert("mylib", 1, versions("1.0.0"))

	empty := []models.VersionRecord{}
	require.True(t, s.Patch("mylib", models.PackagePatch{Versions: &empty}))

	rec, _ := s.FindByID("mylib")
	assert.NotNil(t, rec.Versions)
	assert.Empty(t, rec.Versions)
}

func TestListInsertionOrderAndDescriptions(t *testing.T) {
	s := New(nil)
	s.Upsert("b", 1, versions("1.0.0", "0.1.0"))
	s.Upsert("a", 1, nil)
	s.Upsert("c", 1, versions("3.0.0"))
	s.Upsert("B", 2, versions("9.9.9"))

	want := []models.PackageSummary{
		{ID: "b", Description: "release 9.9.9"},
		{ID: "a", Description: ""},
		{ID: "c", Description: "release 3.0.0"},
	}
	assert.Equal(t, want, s.List())
	assert.Equal(t, s.List(), s.List())
}

func TestSeededStore(t *testing.T) {
	s := New(ExamplePackages())

	list := s.List()
	require.Len(t, list, 4)
	assert.Equal(t, "FluentAssertions", list[0].ID)

	rec, ok := s.FindByID("pathy")
	require.True(t, ok)
	assert.Equal(t, "Pathy", rec.ID)
	assert.Len(t, rec.Versions, 2)
}

func TestUploadStatusRoundTrip(t *testing.T) {
	s := New(nil)

	pid, err := s.Upload(models.PackageDescriptor{
		ID:       "X",
		Versions: []models.VersionSummary{{Version: "1.0.0", Description: "first", Owner: "me"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, pid)

	_, ok := s.FindByID("X")
	assert.False(t, ok, "pending record must be hidden")
	assert.Empty(t, s.List())

	status, id := s.UploadStatus(pid)
	assert.Equal(t, models.UploadInProgress, status)
	assert.Empty(t, id)

	rec, ok := s.FindByID("x")
	require.True(t, ok, "record is visible after the first poll")
	assert.Equal(t, models.UploadProcessed, rec.Upload.State)
	assert.Equal(t, "me", rec.Versions[0].Owner)
	assert.Empty(t, rec.Versions[0].Readme)

	status, id = s.UploadStatus(pid)
	assert.Equal(t, models.UploadCompleted, status)
	assert.Equal(t, "X", id)

	status, id = s.UploadStatus(pid)
	assert.Equal(t, models.UploadNotFound, status)
	assert.Empty(t, id)

	rec, _ = s.FindByID("X")
	assert.Equal(t, models.Upload{State: models.UploadSettled}, rec.Upload)
}

func TestUploadStatusUnknown(t *testing.T) {
	s := New(nil)
	status, id := s.UploadStatus("nope")
	assert.Equal(t, models.UploadNotFound, status)
	assert.Empty(t, id)
}

func TestUploadRequiresID(t *testing.T) {
	s := New(nil)
	_, err := s.Upload(models.PackageDescriptor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))
}

func TestUploadRejectsRegisteredID(t *testing.T) {
	s := New(nil)
	s.Upsert("mylib", 7, versions("1.0.0"))

	_, err := s.Upload(models.PackageDescriptor{ID: "MyLib"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConflict)

	rec, _ := s.FindByID("mylib")
	assert.Equal(t, int64(7), rec.TotalDownloads)
}

func TestUploadRejectsPendingID(t *testing.T) {
	s := New(nil)
	_, err := s.Upload(models.PackageDescriptor{ID: "mylib"})
	require.NoError(t, err)

	_, err = s.Upload(models.PackageDescriptor{ID: "mylib"})
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestUploadRetriesCollidingPendingID(t *testing.T) {
	s := New(nil)
	ids := []string{"dup", "dup", "fresh"}
	s.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := s.Upload(models.PackageDescriptor{ID: "a"})
	require.NoError(t, err)
	second, err := s.Upload(models.PackageDescriptor{ID: "b"})
	require.NoError(t, err)

	assert.Equal(t, "dup", first)
	assert.Equal(t, "fresh", second)
}

func TestDeletePendingReleasesPendingID(t *testing.T) {
	s := New(nil)
	pid, err := s.Upload(models.PackageDescriptor{ID: "mylib"})
	require.NoError(t, err)

	assert.True(t, s.Delete("mylib"))
	status, _ := s.UploadStatus(pid)
	assert.Equal(t, models.UploadNotFound, status)
}

func TestUpsertKeepsUploadState(t *testing.T) {
	s := New(nil)
	pid, err := s.Upload(models.PackageDescriptor{ID: "mylib"})
	require.NoError(t, err)

	assert.False(t, s.Upsert("mylib", 3, versions("1.0.0")))
	_, ok := s.FindByID("mylib")
	assert.False(t, ok, "upsert does not settle a pending upload")

	status, _ := s.UploadStatus(pid)
	assert.Equal(t, models.UploadInProgress, status)
	rec, ok := s.FindByID("mylib")
	require.True(t, ok)
	assert.Equal(t, int64(3), rec.TotalDownloads)
}

func TestUpsertRecordReturnsStoredRecord(t *testing.T) {
	s := New(nil)

	rec, created := s.UpsertRecord("Foo", 1, versions("1.0.0"))
	assert.True(t, created)
	assert.Equal(t, "Foo", rec.ID)

	in := versions("2.0.0")
	rec, created = s.UpsertRecord("FOO", 2, in)
	assert.False(t, created)
	assert.Equal(t, "Foo", rec.ID, "replace keeps the original id")
	assert.Equal(t, int64(2), rec.TotalDownloads)
	assert.Equal(t, versions("2.0.0"), rec.Versions)

	rec.Versions[0].Version = "mutated"
	in[0].Version = "mutated"
	stored, ok := s.FindByID("foo")
	require.True(t, ok)
	assert.Equal(t, "2.0.0", stored.Versions[0].Version)
}

func TestUpsertRecordOnPendingUpload(t *testing.T) {
	s := New(nil)
	_, err := s.Upload(models.PackageDescriptor{ID: "mylib"})
	require.NoError(t, err)

	rec, created := s.UpsertRecord("MyLib", 5, versions("1.0.0"))
	assert.False(t, created)
	assert.Equal(t, "mylib", rec.ID)
	assert.Equal(t, int64(5), rec.TotalDownloads)
	assert.True(t, rec.Pending())
}

func TestPatchPendingUpload(t *testing.T) {
	s := New(nil)
	pid, err := s.Upload(models.PackageDescriptor{ID: "mylib"})
	require.NoError(t, err)

	downloads := int64(42)
	assert.True(t, s.Patch("mylib", models.PackagePatch{TotalDownloads: &downloads}),
		"a pending record exists and can be patched")
	_, ok := s.FindByID("mylib")
	assert.False(t, ok, "patch does not settle a pending upload")

	status, _ := s.UploadStatus(pid)
	require.Equal(t, models.UploadInProgress, status)
	rec, ok := s.FindByID("mylib")
	require.True(t, ok)
	assert.Equal(t, int64(42), rec.TotalDownloads)
}

func TestStats(t *testing.T) {
	s := New(ExamplePackages())
	_, err := s.Upload(models.PackageDescriptor{ID: "new"})
	require.NoError(t, err)

	assert.Equal(t, services.StoreStats{Packages: 4, PendingUploads: 1}, s.Stats())
}

func TestConcurrentUpsertSameID(t *testing.T) {
	s := New(nil)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if s.Upsert("shared", int64(i), versions(fmt.Sprintf("%d.0.0", i))) {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, created)

	rec, ok := s.FindByID("shared")
	require.True(t, ok)
	require.Len(t, rec.Versions, 1)
	assert.Equal(t, fmt.Sprintf("%d.0.0", rec.TotalDownloads), rec.Versions[0].Version,
		"downloads and versions must come from the same write")
}

func TestConcurrentUploadPolling(t *testing.T) {
	s := New(nil)
	pid, err := s.Upload(models.PackageDescriptor{ID: "polled"})
	require.NoError(t, err)

	const workers = 16
	results := make(chan models.UploadStatus, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := s.UploadStatus(pid)
			results <- status
		}()
	}
	wg.Wait()
	close(results)

	counts := map[models.UploadStatus]int{}
	for status := range results {
		counts[status]++
	}
	assert.Equal(t, 1, counts[models.UploadInProgress])
	assert.Equal(t, 1, counts[models.UploadCompleted])
	assert.Equal(t, workers-2, counts[models.UploadNotFound])
}
