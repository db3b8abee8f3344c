package internal

// ManifestInfo summarizes a manifest for the manifestinfo command
type ManifestInfo struct {
	Game             string         `json:"game"`
	Version          string         `json:"version"`
	Platform         string         `json:"platform"`
	Release          string         `json:"release"`
	ManifestURL      string         `json:"manifest_url"`
	TotalFileBytes   int64          `json:"total_file_bytes"`
	TotalBundleBytes int64          `json:"total_bundle_bytes"`
	Fragments        []FragmentInfo `json:"fragments"`
}

// FragmentInfo summarizes one fragment
type FragmentInfo struct {
	Name         string `json:"name"`
	FileCount    int    `json:"file_count"`
	BundleCount  int    `json:"bundle_count"`
	ChunkCount   int    `json:"chunk_count"`
	LooseCount   int    `json:"loose_file_count"`
	SymlinkCount int    `json:"symlink_count"`
	FileBytes    int64  `json:"file_bytes"`
	BundleBytes  int64  `json:"bundle_bytes"`
}

// Summarize builds the ManifestInfo of m. Location fields are left to the caller.
func Summarize(m *Manifest) *ManifestInfo {
	info := &ManifestInfo{
		TotalFileBytes:   m.TotalFileBytes(),
		TotalBundleBytes: m.TotalBundleBytes(),
		Fragments:        make([]FragmentInfo, 0, len(m.Fragments)),
	}

	for _, fragment := range m.Fragments {
		fi := FragmentInfo{
			Name:        fragment.Name,
			FileCount:   len(fragment.Files),
			BundleCount: len(fragment.Bundles),
			LooseCount:  len(UnbundledFiles(fragment)),
		}
		for _, file := range fragment.Files {
			fi.FileBytes += file.Size
			if file.IsSymlink() {
				fi.SymlinkCount++
			}
		}
		for _, bundle := range fragment.Bundles {
			fi.ChunkCount += len(bundle.Chunks)
			fi.BundleBytes += bundle.Extent()
		}
		info.Fragments = append(info.Fragments, fi)
	}

	return info
}
