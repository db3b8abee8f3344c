package internal

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/riverfog7/CytrusClient/internal/manifestfb"
)

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func repeatHex(c byte) string {
	return string(bytes.Repeat([]byte{c}, 2*HashSize))
}

// encodeOptions drops otherwise mandatory vectors to build broken manifests.
type encodeOptions struct {
	omitFragments    bool
	omitFiles        bool
	omitBundles      bool
	omitBundleChunks bool
	rawHash          []byte
}

// encodeManifest serializes m with the generated builders. A file whose
// Chunks slice is nil is written without a chunk list.
func encodeManifest(t *testing.T, m *Manifest, opts encodeOptions) []byte {
	t.Helper()
	b := flatbuffers.NewBuilder(1024)

	hashVector := func(h string) flatbuffers.UOffsetT {
		if opts.rawHash != nil {
			return b.CreateByteVector(opts.rawHash)
		}
		raw, err := hex.DecodeString(h)
		if err != nil {
			t.Fatalf("bad test hash %q: %v", h, err)
		}
		return b.CreateByteVector(raw)
	}

	chunk := func(hash string, size, offset int64) flatbuffers.UOffsetT {
		h := hashVector(hash)
		manifestfb.ChunkStart(b)
		manifestfb.ChunkAddHash(b, h)
		manifestfb.ChunkAddSize(b, size)
		manifestfb.ChunkAddOffset(b, offset)
		return manifestfb.ChunkEnd(b)
	}

	offsetVector := func(offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
		b.StartVector(4, len(offsets), 4)
		for i := len(offsets) - 1; i >= 0; i-- {
			b.PrependUOffsetT(offsets[i])
		}
		return b.EndVector(len(offsets))
	}

	var fragments []flatbuffers.UOffsetT
	for _, fragment := range m.Fragments {
		var files []flatbuffers.UOffsetT
		for _, file := range fragment.Files {
			var chunks flatbuffers.UOffsetT
			if file.Chunks != nil {
				var offs []flatbuffers.UOffsetT
				for _, c := range file.Chunks {
					offs = append(offs, chunk(c.Hash, c.Size, c.FileOffset))
				}
				chunks = offsetVector(offs)
			}
			name := b.CreateString(file.Name)
			hash := hashVector(file.Hash)
			var symlink flatbuffers.UOffsetT
			if file.Symlink != "" {
				symlink = b.CreateString(file.Symlink)
			}

			manifestfb.FileStart(b)
			manifestfb.FileAddName(b, name)
			manifestfb.FileAddSize(b, file.Size)
			manifestfb.FileAddHash(b, hash)
			if file.Chunks != nil {
				manifestfb.FileAddChunks(b, chunks)
			}
			manifestfb.FileAddExecutable(b, file.Executable)
			if file.Symlink != "" {
				manifestfb.FileAddSymlink(b, symlink)
			}
			files = append(files, manifestfb.FileEnd(b))
		}

		var bundles []flatbuffers.UOffsetT
		for _, bundle := range fragment.Bundles {
			var chunks flatbuffers.UOffsetT
			if !opts.omitBundleChunks {
				var offs []flatbuffers.UOffsetT
				for _, c := range bundle.Chunks {
					offs = append(offs, chunk(c.Hash, c.Size, c.BundleOffset))
				}
				chunks = offsetVector(offs)
			}
			hash := hashVector(bundle.Hash)

			manifestfb.BundleStart(b)
			manifestfb.BundleAddHash(b, hash)
			if !opts.omitBundleChunks {
				manifestfb.BundleAddChunks(b, chunks)
			}
			bundles = append(bundles, manifestfb.BundleEnd(b))
		}

		filesVec := offsetVector(files)
		bundlesVec := offsetVector(bundles)
		name := b.CreateString(fragment.Name)

		manifestfb.FragmentStart(b)
		manifestfb.FragmentAddName(b, name)
		if !opts.omitFiles {
			manifestfb.FragmentAddFiles(b, filesVec)
		}
		if !opts.omitBundles {
			manifestfb.FragmentAddBundles(b, bundlesVec)
		}
		fragments = append(fragments, manifestfb.FragmentEnd(b))
	}

	fragmentsVec := offsetVector(fragments)
	manifestfb.ManifestStart(b)
	if !opts.omitFragments {
		manifestfb.ManifestAddFragments(b, fragmentsVec)
	}
	b.Finish(manifestfb.ManifestEnd(b))
	return b.FinishedBytes()
}

// testBundle lays chunks out back to back after a prefix of padding bytes and
// returns the blob with its BundleEntry.
func testBundle(padding int, chunks ...[]byte) ([]byte, *BundleEntry) {
	blob := bytes.Repeat([]byte{0xee}, padding)
	bundle := &BundleEntry{}
	for _, c := range chunks {
		bundle.Chunks = append(bundle.Chunks, ChunkDescriptor{
			Hash:         sha1Hex(c),
			Size:         int64(len(c)),
			BundleOffset: int64(len(blob)),
		})
		blob = append(blob, c...)
	}
	bundle.Hash = sha1Hex(blob)
	return blob, bundle
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
