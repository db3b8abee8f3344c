package internal

// DelegateWriteStreamInfo is a callback function type to report the number of bytes received from the network
type DelegateWriteStreamInfo func(writeBytes int64)

// DelegateBundleComplete is a callback function type to report when a bundle is done, either extracted or skipped
type DelegateBundleComplete func(bundle *BundleEntry, skipped bool)

// DelegateFileComplete is a callback function type to report when a loose file is done
type DelegateFileComplete func(file *FileEntry, skipped bool)
