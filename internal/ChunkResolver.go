package internal

// ResolvedPlacement pairs a destination file with one file-local placement of a chunk.
type ResolvedPlacement struct {
	File      *FileEntry
	Placement ChunkPlacement
}

// ResolveChunk returns every placement of hash across files. A file without
// explicit chunks matches when its whole-file hash equals hash; the placement
// then covers the whole file from offset 0. The same hash placed in several
// files yields one entry per placement.
func ResolveChunk(hash string, files []*FileEntry) []ResolvedPlacement {
	var resolved []ResolvedPlacement

	for _, file := range files {
		if len(file.Chunks) == 0 {
			if file.Hash == hash {
				resolved = append(resolved, ResolvedPlacement{
					File:      file,
					Placement: ChunkPlacement{Hash: hash, Size: file.Size, FileOffset: 0},
				})
			}
			continue
		}

		for _, chunk := range file.Chunks {
			if chunk.Hash == hash {
				resolved = append(resolved, ResolvedPlacement{File: file, Placement: chunk})
			}
		}
	}

	return resolved
}

// PlacementIndex answers the same query as ResolveChunk from a map built once
// per fragment, so resolving a bundle of n chunks does not rescan every file n times.
type PlacementIndex struct {
	byHash map[string][]ResolvedPlacement
}

// NewPlacementIndex indexes every placement of files by chunk hash.
func NewPlacementIndex(files []*FileEntry) *PlacementIndex {
	index := &PlacementIndex{byHash: make(map[string][]ResolvedPlacement)}
	for _, file := range files {
		for _, placement := range file.Placements() {
			index.byHash[placement.Hash] = append(index.byHash[placement.Hash], ResolvedPlacement{
				File:      file,
				Placement: placement,
			})
		}
	}
	return index
}

// Resolve returns every placement of hash.
func (idx *PlacementIndex) Resolve(hash string) []ResolvedPlacement {
	return idx.byHash[hash]
}

// Contains reports whether any file places hash.
func (idx *PlacementIndex) Contains(hash string) bool {
	return len(idx.byHash[hash]) > 0
}

// FilesFedBy returns the distinct files that receive at least one chunk of bundle.
func (idx *PlacementIndex) FilesFedBy(bundle *BundleEntry) []*FileEntry {
	seen := make(map[*FileEntry]struct{})
	var files []*FileEntry
	for _, chunk := range bundle.Chunks {
		for _, r := range idx.byHash[chunk.Hash] {
			if _, ok := seen[r.File]; ok {
				continue
			}
			seen[r.File] = struct{}{}
			files = append(files, r.File)
		}
	}
	return files
}

// UnbundledFiles returns the files of the fragment that no bundle chunk of the
// fragment can fully produce. Symlinks and empty files are never returned,
// they are materialized without any content transfer.
func UnbundledFiles(fragment *Fragment) []*FileEntry {
	provided := make(map[string]struct{})
	for _, bundle := range fragment.Bundles {
		for _, chunk := range bundle.Chunks {
			provided[chunk.Hash] = struct{}{}
		}
	}

	var missing []*FileEntry
	for _, file := range fragment.Files {
		if file.IsSymlink() || file.Size == 0 {
			continue
		}
		for _, placement := range file.Placements() {
			if _, ok := provided[placement.Hash]; !ok {
				missing = append(missing, file)
				break
			}
		}
	}
	return missing
}
