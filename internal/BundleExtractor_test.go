package internal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func stageBlob(t *testing.T, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), sha1Hex(blob))
	writeFile(t, path, blob)
	return path
}

func TestExtractBundle_AtOffset(t *testing.T) {
	content := []byte("0123456789")
	blob, bundle := testBundle(100, content)
	file := &FileEntry{Name: "data/a.bin", Size: 10, Hash: sha1Hex(content)}
	destDir := t.TempDir()

	err := ExtractBundle(context.Background(), stageBlob(t, blob), bundle,
		NewPlacementIndex([]*FileEntry{file}), destDir, NewPathLocker(0))
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}

	if got := readFile(t, filepath.Join(destDir, "data", "a.bin")); !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestExtractBundle_DeduplicatedChunk(t *testing.T) {
	header := []byte("HEADER")
	body := []byte("body bytes")
	blob, bundle := testBundle(0, header, body)

	// header lands twice in one file and once in another.
	twice := &FileEntry{Name: "twice.bin", Size: 22, Hash: repeatHex('1'), Chunks: []ChunkPlacement{
		{Hash: sha1Hex(header), Size: 6, FileOffset: 0},
		{Hash: sha1Hex(body), Size: 10, FileOffset: 6},
		{Hash: sha1Hex(header), Size: 6, FileOffset: 16},
	}}
	once := &FileEntry{Name: "once.bin", Size: 6, Hash: sha1Hex(header)}
	destDir := t.TempDir()

	err := ExtractBundle(context.Background(), stageBlob(t, blob), bundle,
		NewPlacementIndex([]*FileEntry{twice, once}), destDir, NewPathLocker(0))
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}

	if got, want := readFile(t, filepath.Join(destDir, "twice.bin")), []byte("HEADERbody bytesHEADER"); !bytes.Equal(got, want) {
		t.Errorf("twice.bin = %q, want %q", got, want)
	}
	if got := readFile(t, filepath.Join(destDir, "once.bin")); !bytes.Equal(got, header) {
		t.Errorf("once.bin = %q, want %q", got, header)
	}
}

func TestExtractBundle_Idempotent(t *testing.T) {
	content := []byte("same bytes every time")
	blob, bundle := testBundle(3, content)
	file := &FileEntry{Name: "f.bin", Size: int64(len(content)), Hash: sha1Hex(content)}
	index := NewPlacementIndex([]*FileEntry{file})
	destDir := t.TempDir()
	blobPath := stageBlob(t, blob)

	for i := 0; i < 2; i++ {
		if err := ExtractBundle(context.Background(), blobPath, bundle, index, destDir, NewPathLocker(0)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	if got := readFile(t, filepath.Join(destDir, "f.bin")); !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestExtractBundle_DoesNotTruncate(t *testing.T) {
	tail := []byte("TAIL")
	blob, bundle := testBundle(0, tail)
	file := &FileEntry{Name: "f.bin", Size: 8, Hash: repeatHex('1'), Chunks: []ChunkPlacement{
		{Hash: repeatHex('a'), Size: 4, FileOffset: 0},
		{Hash: sha1Hex(tail), Size: 4, FileOffset: 4},
	}}
	destDir := t.TempDir()
	writeFile(t, filepath.Join(destDir, "f.bin"), []byte("HEADxxxx"))

	err := ExtractBundle(context.Background(), stageBlob(t, blob), bundle,
		NewPlacementIndex([]*FileEntry{file}), destDir, NewPathLocker(0))
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}

	if got, want := readFile(t, filepath.Join(destDir, "f.bin")), []byte("HEADTAIL"); !bytes.Equal(got, want) {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestExtractBundle_SkipsSymlinks(t *testing.T) {
	content := []byte("target")
	blob, bundle := testBundle(0, content)
	link := &FileEntry{Name: "link", Size: 6, Hash: sha1Hex(content), Symlink: "target.bin"}
	destDir := t.TempDir()

	err := ExtractBundle(context.Background(), stageBlob(t, blob), bundle,
		NewPlacementIndex([]*FileEntry{link}), destDir, NewPathLocker(0))
	if err != nil {
		t.Fatalf("ExtractBundle: %v", err)
	}
	if fileExists(filepath.Join(destDir, "link")) {
		t.Error("symlink entry was written as a regular file")
	}
}

func TestExtractBundle_Errors(t *testing.T) {
	content := []byte("0123456789")

	tests := []struct {
		name   string
		mutate func(*BundleEntry)
		files  []*FileEntry
		want   error
	}{
		{
			name:  "chunk without placement",
			files: []*FileEntry{{Name: "other", Size: 3, Hash: repeatHex('0')}},
			want:  ErrResolution,
		},
		{
			name: "chunk past end of blob",
			mutate: func(b *BundleEntry) {
				b.Chunks[0].BundleOffset = 1000
			},
			files: []*FileEntry{{Name: "a", Size: 10, Hash: sha1Hex(content)}},
			want:  ErrIO,
		},
		{
			name: "short chunk",
			mutate: func(b *BundleEntry) {
				b.Chunks[0].Size = 50
			},
			files: []*FileEntry{{Name: "a", Size: 10, Hash: sha1Hex(content)}},
			want:  ErrIO,
		},
		{
			name: "huge chunk size",
			mutate: func(b *BundleEntry) {
				b.Chunks[0].Size = 1 << 50
			},
			files: []*FileEntry{{Name: "a", Size: 10, Hash: sha1Hex(content)}},
			want:  ErrIO,
		},
		{
			name: "offset plus size overflows",
			mutate: func(b *BundleEntry) {
				b.Chunks[0].BundleOffset = 4
				b.Chunks[0].Size = 1<<63 - 1
			},
			files: []*FileEntry{{Name: "a", Size: 10, Hash: sha1Hex(content)}},
			want:  ErrIO,
		},
		{
			name:  "name escapes destination",
			files: []*FileEntry{{Name: "../escape", Size: 10, Hash: sha1Hex(content)}},
			want:  ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, bundle := testBundle(0, content)
			if tt.mutate != nil {
				tt.mutate(bundle)
			}
			destDir := t.TempDir()

			err := ExtractBundle(context.Background(), stageBlob(t, blob), bundle,
				NewPlacementIndex(tt.files), destDir, NewPathLocker(0))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractBundle_Cancelled(t *testing.T) {
	content := []byte("payload")
	blob, bundle := testBundle(0, content)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ExtractBundle(ctx, stageBlob(t, blob), bundle,
		NewPlacementIndex([]*FileEntry{{Name: "a", Size: 7, Hash: sha1Hex(content)}}), t.TempDir(), NewPathLocker(0))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDestinationPath(t *testing.T) {
	root := filepath.Join("out", "dofus")

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "data/img.png", want: filepath.Join(root, "data", "img.png")},
		{name: "a/../b.txt", want: filepath.Join(root, "b.txt")},
		{name: "../b.txt", wantErr: true},
		{name: "a/../../b.txt", wantErr: true},
		{name: "/etc/passwd", wantErr: true},
		{name: "", wantErr: true},
		{name: "..", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DestinationPath(root, tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Errorf("DestinationPath(%q) = %q, %v; want ErrDecode", tt.name, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DestinationPath(%q): %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("DestinationPath(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
