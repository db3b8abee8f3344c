package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractBundle scatter-writes every chunk of the bundle blob at blobPath into
// the files of destDir that place it. Chunks are processed strictly in
// descriptor order. A chunk that no file places fails the whole bundle.
// Destination files are never truncated: other chunks may already occupy
// other ranges of the same file.
func ExtractBundle(
	ctx context.Context,
	blobPath string,
	bundle *BundleEntry,
	index *PlacementIndex,
	destDir string,
	locker *PathLocker,
) error {
	blob, err := os.Open(blobPath)
	if err != nil {
		return ioError("open bundle", blobPath, err)
	}
	defer blob.Close()

	info, err := blob.Stat()
	if err != nil {
		return ioError("stat bundle", blobPath, err)
	}
	blobSize := info.Size()

	var buffer []byte
	for i, chunk := range bundle.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		placements := index.Resolve(chunk.Hash)
		if len(placements) == 0 {
			return ErrResolution.
				WithDetail("bundle", bundle.Hash).
				WithDetail("chunk", chunk.Hash).
				WithDetail("index", i)
		}

		// Checked before allocating: the size comes from the manifest.
		if !chunkWithin(chunk, blobSize) {
			return ioError("read bundle", blobPath, fmt.Errorf("chunk %s at 0x%x -> L: 0x%x: %w",
				chunk.Hash, chunk.BundleOffset, chunk.Size, io.ErrUnexpectedEOF))
		}

		if int64(cap(buffer)) < chunk.Size {
			buffer = make([]byte, chunk.Size)
		}
		buffer = buffer[:chunk.Size]

		if _, err := blob.Seek(chunk.BundleOffset, io.SeekStart); err != nil {
			return ioError("seek bundle", blobPath, err)
		}
		if _, err := io.ReadFull(blob, buffer); err != nil {
			return ioError("read bundle", blobPath, fmt.Errorf("chunk %s at 0x%x -> L: 0x%x: %w",
				chunk.Hash, chunk.BundleOffset, chunk.Size, err))
		}

		PushLogDebug(nil, fmt.Sprintf("Chunk %s of bundle %s is placed in %d file(s)",
			chunk.Hash, bundle.Hash, len(placements)))

		for _, r := range placements {
			if r.File.IsSymlink() {
				continue
			}

			target, err := DestinationPath(destDir, r.File.Name)
			if err != nil {
				return err
			}

			PushLogDebug(nil, fmt.Sprintf("Writing chunk %s to %s at 0x%x -> L: 0x%x",
				chunk.Hash, target, r.Placement.FileOffset, r.Placement.Size))

			err = locker.WithLock(target, func() error {
				return writeChunkAt(target, r.Placement.FileOffset, buffer)
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// chunkWithin reports whether the byte range of chunk lies inside a blob of blobSize bytes.
func chunkWithin(chunk ChunkDescriptor, blobSize int64) bool {
	if chunk.BundleOffset < 0 || chunk.Size < 0 {
		return false
	}
	return chunk.BundleOffset <= blobSize && chunk.Size <= blobSize-chunk.BundleOffset
}

// writeChunkAt opens path without truncating it, writes data at offset and
// closes it again, creating the parent directories when needed.
func writeChunkAt(path string, offset int64, data []byte) error {
	if err := EnsureDirectory(filepath.Dir(path)); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return ioError("open", path, err)
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return ioError("seek", path, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return ioError("write", path, err)
	}
	if err := file.Close(); err != nil {
		return ioError("flush", path, err)
	}
	return nil
}

// EnsureDirectory creates path and its parents. An existing directory is not an error.
func EnsureDirectory(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil
	}

	PushLogDebug(nil, fmt.Sprintf("Creating directory %s", path))
	if err := os.MkdirAll(path, 0755); err != nil {
		return ioError("create directory", path, err)
	}
	return nil
}

// DestinationPath joins a manifest-relative name onto root and rejects names
// that would land outside of it.
func DestinationPath(root, name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrDecode.WithMessage("file name %q escapes the destination directory", name)
	}
	return filepath.Join(root, rel), nil
}
