package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/foundry/pkgdemo/internal/util/hashing"
)

func newTestArchive(t *testing.T) (*DiskArchive, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := NewDiskArchive(dir)
	if err != nil {
		t.Fatalf("NewDiskArchive: %v", err)
	}
	return a, dir
}

func TestStoreAndOpen(t *testing.T) {
	a, _ := newTestArchive(t)

	payload := `{"id":"mylib","versions":[]}`
	digest, size, err := a.Store(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", size, len(payload))
	}
	sum := sha256.Sum256([]byte(payload))
	if want := hex.EncodeToString(sum[:]); digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}
	if !a.Exists(digest) {
		t.Error("Exists returned false for stored descriptor")
	}

	rc, err := a.Open(digest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading descriptor: %v", err)
	}
	if string(data) != payload {
		t.Errorf("content = %q, want %q", data, payload)
	}
}

func TestOpenRejectsNonDigest(t *testing.T) {
	a, _ := newTestArchive(t)

	if _, err := a.Open("../../etc/passwd"); err == nil {
		t.Error("expected error for non-digest name")
	}
	if a.Exists("../journal.db") {
		t.Error("Exists must reject non-digest names")
	}
}

func TestOpenMissing(t *testing.T) {
	a, _ := newTestArchive(t)

	_, err := a.Open(strings.Repeat("0", 64))
	if err == nil {
		t.Error("expected error opening missing descriptor")
	}
}

func TestNoTempFilesLeft(t *testing.T) {
	a, dir := newTestArchive(t)

	if _, _, err := a.Store(strings.NewReader("atomic")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "descriptors", "tmp"))
	if err != nil {
		t.Fatalf("reading tmp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no temp files, found %d", len(entries))
	}
}

func TestConcurrentIdenticalPayloads(t *testing.T) {
	a, dir := newTestArchive(t)

	const workers = 8
	digests := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _, err := a.Store(strings.NewReader("same-descriptor"))
			if err != nil {
				errs <- err
				return
			}
			digests <- d
		}()
	}
	wg.Wait()
	close(errs)
	close(digests)

	for err := range errs {
		t.Fatalf("Store in goroutine failed: %v", err)
	}

	var first string
	for d := range digests {
		if first == "" {
			first = d
			continue
		}
		if d != first {
			t.Fatalf("digest mismatch: %s vs %s", first, d)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "descriptors", hashing.PrefixDir(first)))
	if err != nil {
		t.Fatalf("reading prefix dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one archived file, found %d", len(entries))
	}
}
