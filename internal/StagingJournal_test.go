package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStagingJournal_Pending(t *testing.T) {
	journal := OpenStagingJournal(t.TempDir())

	first, err := journal.Begin(repeatHex('a'))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	second, err := journal.Begin(repeatHex('b'))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := journal.Finish(first); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pending, err := journal.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}

	var got []string
	for _, blob := range pending {
		got = append(got, blob.BundleHash)
	}
	if diff := cmp.Diff([]string{second.BundleHash}, got); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
	if pending[0].Path != journal.BlobPath(repeatHex('b')) {
		t.Errorf("Path = %s", pending[0].Path)
	}
	if !pending[0].Started.Equal(second.Started) {
		t.Errorf("Started = %v, want %v", pending[0].Started, second.Started)
	}
}

func TestStagingJournal_DamagedTail(t *testing.T) {
	journal := OpenStagingJournal(t.TempDir())
	if _, err := journal.Begin(repeatHex('a')); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	f, err := os.OpenFile(journal.Path(), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	// Length prefix promising more bytes than follow.
	f.Write([]byte{0x40, 0x0a})
	f.Close()

	pending, err := journal.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].BundleHash != repeatHex('a') {
		t.Errorf("pending = %+v", pending)
	}
}

func TestStagingJournal_Sweep(t *testing.T) {
	dir := t.TempDir()
	journal := OpenStagingJournal(dir)

	orphan, err := journal.Begin(repeatHex('a'))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	writeFile(t, orphan.Path, []byte("partial blob"))

	interrupted, err := journal.Begin(repeatHex('b'))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	writeFile(t, interrupted.PartPath(), []byte("half"))

	stray := filepath.Join(dir, repeatHex('c')+PartSuffix)
	writeFile(t, stray, []byte("unjournaled"))

	keep := filepath.Join(dir, "game.exe")
	writeFile(t, keep, []byte("destination file"))
	keepPart := filepath.Join(dir, "video.part")
	writeFile(t, keepPart, []byte("not a bundle"))

	removed, err := journal.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	for _, path := range []string{orphan.Path, interrupted.PartPath(), stray, journal.Path()} {
		if fileExists(path) {
			t.Errorf("%s still exists", path)
		}
	}
	for _, path := range []string{keep, keepPart} {
		if !fileExists(path) {
			t.Errorf("sweep removed %s which it does not own", path)
		}
	}

	pending, err := journal.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sweep = %+v", pending)
	}
}

func TestStagingJournal_PathsRelativeToDirectory(t *testing.T) {
	journal := OpenStagingJournal(t.TempDir())
	if _, err := journal.Begin(repeatHex('a')); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	// The same journal seen from another location, as after a run started
	// from a different working directory.
	moved := OpenStagingJournal(t.TempDir())
	writeFile(t, moved.Path(), readFile(t, journal.Path()))

	pending, err := moved.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %+v", pending)
	}
	if want := moved.BlobPath(repeatHex('a')); pending[0].Path != want {
		t.Errorf("Path = %s, want %s", pending[0].Path, want)
	}
}
