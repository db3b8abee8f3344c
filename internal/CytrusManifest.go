package internal

// Manifest is the decoded fragment tree of one release.
// It is read-only once DecodeManifest returns it.
type Manifest struct {
	Fragments []*Fragment
}

// Fragment is a named top-level partition of the release tree.
// Any bundle of a fragment may feed any file of the same fragment.
type Fragment struct {
	Name    string
	Files   []*FileEntry
	Bundles []*BundleEntry
}

// FileEntry describes one destination file.
// A file without explicit chunks is a single implicit chunk covering the whole file.
type FileEntry struct {
	Name       string
	Size       int64
	Hash       string
	Chunks     []ChunkPlacement
	Executable bool
	Symlink    string
}

// ChunkPlacement is a chunk attached to a file. Offset is file-local:
// the position inside the destination file where the chunk content goes.
type ChunkPlacement struct {
	Hash       string
	Size       int64
	FileOffset int64
}

// BundleEntry describes one downloadable blob.
// Hash is both the blob address on the CDN and the expected SHA-1 of the blob.
type BundleEntry struct {
	Hash   string
	Chunks []ChunkDescriptor
}

// ChunkDescriptor is a chunk attached to a bundle. Offset is bundle-local:
// the position inside the bundle blob where the chunk bytes begin.
type ChunkDescriptor struct {
	Hash         string
	Size         int64
	BundleOffset int64
}

// Placements returns the file-local placements of the file, synthesizing the
// implicit whole-file chunk when no explicit chunk list exists.
func (f *FileEntry) Placements() []ChunkPlacement {
	if len(f.Chunks) == 0 {
		return []ChunkPlacement{{Hash: f.Hash, Size: f.Size, FileOffset: 0}}
	}
	return f.Chunks
}

// IsSymlink reports whether the entry materializes as a symbolic link.
func (f *FileEntry) IsSymlink() bool {
	return f.Symlink != ""
}

// Extent is the number of bytes of the blob that chunk descriptors reach into.
func (b *BundleEntry) Extent() int64 {
	var end int64
	for _, c := range b.Chunks {
		if e := c.BundleOffset + c.Size; e > end {
			end = e
		}
	}
	return end
}

// Fragment returns the fragment with the given name, or nil.
func (m *Manifest) Fragment(name string) *Fragment {
	for _, f := range m.Fragments {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// TotalBundleBytes sums the extents of every bundle in the manifest.
func (m *Manifest) TotalBundleBytes() int64 {
	var total int64
	for _, f := range m.Fragments {
		for _, b := range f.Bundles {
			total += b.Extent()
		}
	}
	return total
}

// TotalFileBytes sums the declared sizes of every file in the manifest.
func (m *Manifest) TotalFileBytes() int64 {
	var total int64
	for _, f := range m.Fragments {
		for _, file := range f.Files {
			total += file.Size
		}
	}
	return total
}
