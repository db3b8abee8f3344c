package internal

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SyncOptions configures a Syncer.
type SyncOptions struct {
	// Game selects the CDN namespace of bundles and loose files.
	Game string
	// MaxConcurrentBundles bounds simultaneous bundle fetches. 0 picks
	// DefaultConcurrentBundles(), a negative value removes the bound.
	MaxConcurrentBundles int
	// Retry bounds transport retries of every fetch.
	Retry RetryPolicy
	// MaxBytesPerSecond caps the total download rate. 0 is unlimited.
	MaxBytesPerSecond int64
	// StagingDir receives bundle blobs while they are extracted.
	// Empty means StagingDirName inside the destination directory of the fragment.
	StagingDir string
	// LooseFiles fetches files that no bundle of their fragment produces.
	LooseFiles bool
	// LockStripes sizes the destination path lock table. 0 is DefaultLockStripes.
	LockStripes int

	OnNetworkRead    DelegateWriteStreamInfo
	OnBundleComplete DelegateBundleComplete
	OnFileComplete   DelegateFileComplete
}

// DefaultConcurrentBundles is the bundle concurrency used when none is configured
func DefaultConcurrentBundles() int {
	return runtime.NumCPU() * 2
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.MaxConcurrentBundles == 0 {
		o.MaxConcurrentBundles = DefaultConcurrentBundles()
	}
	o.Retry = o.Retry.withDefaults()
	return o
}

// Syncer materializes manifest fragments on disk from CDN bundles.
type Syncer struct {
	cdn     *CdnClient
	opts    SyncOptions
	locker  *PathLocker
	limiter *DownloadSpeedLimiter

	sweepMu sync.Mutex
	swept   map[string]struct{}
}

// NewSyncer creates a Syncer fetching from cdn.
func NewSyncer(cdn *CdnClient, opts SyncOptions) *Syncer {
	opts = opts.withDefaults()
	return &Syncer{
		cdn:     cdn,
		opts:    opts,
		locker:  NewPathLocker(opts.LockStripes),
		limiter: NewDownloadSpeedLimiter(opts.MaxBytesPerSecond),
		swept:   make(map[string]struct{}),
	}
}

// SpeedLimiter exposes the shared limiter so the limit can be changed at runtime.
func (s *Syncer) SpeedLimiter() *DownloadSpeedLimiter {
	return s.limiter
}

// SyncManifest synchronizes every fragment of manifest into outDir/<fragment name>,
// one fragment after the other.
func (s *Syncer) SyncManifest(ctx context.Context, manifest *Manifest, outDir string) error {
	if err := EnsureDirectory(outDir); err != nil {
		return err
	}

	for _, fragment := range manifest.Fragments {
		fragmentDir, err := DestinationPath(outDir, fragment.Name)
		if err != nil {
			return err
		}
		if err := s.SyncFragment(ctx, fragment, fragmentDir); err != nil {
			return fmt.Errorf("fragment %s: %w", fragment.Name, err)
		}
	}
	return nil
}

// SyncFragment fetches and extracts every bundle of fragment into destDir.
// Bundles run concurrently up to MaxConcurrentBundles. After the first
// failure no further bundle is started; bundles already running finish on
// their own, and the first error is returned once they have.
func (s *Syncer) SyncFragment(ctx context.Context, fragment *Fragment, destDir string) error {
	if err := EnsureDirectory(destDir); err != nil {
		return err
	}

	stagingDir := s.opts.StagingDir
	if stagingDir == "" {
		stagingDir = filepath.Join(destDir, StagingDirName)
	}
	journal := OpenStagingJournal(stagingDir)
	if err := s.sweepOnce(journal, stagingDir); err != nil {
		return err
	}

	if err := TrimOversizedFiles(fragment, destDir, s.locker); err != nil {
		return err
	}

	PushLogInfo(nil, fmt.Sprintf("Synchronizing fragment %s: %d file(s), %d bundle(s)",
		fragment.Name, len(fragment.Files), len(fragment.Bundles)))

	index := NewPlacementIndex(fragment.Files)

	var g errgroup.Group
	if s.opts.MaxConcurrentBundles > 0 {
		g.SetLimit(s.opts.MaxConcurrentBundles)
	}

	var failed atomic.Bool
	for _, bundle := range fragment.Bundles {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		bundle := bundle
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			err := s.syncBundle(ctx, journal, bundle, index, destDir)
			if err != nil {
				failed.Store(true)
				PushLogError(nil, fmt.Sprintf("Bundle %s failed: %v", bundle.Hash, err))
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.opts.LooseFiles {
		if err := s.syncLooseFiles(ctx, fragment, destDir); err != nil {
			return err
		}
	}

	return ApplyFileAttributes(fragment, destDir, s.locker)
}

func (s *Syncer) sweepOnce(journal *StagingJournal, stagingDir string) error {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	key := filepath.Clean(stagingDir)
	if _, done := s.swept[key]; done {
		return nil
	}

	removed, err := journal.Sweep()
	if err != nil {
		return err
	}
	if removed > 0 {
		PushLogInfo(nil, fmt.Sprintf("Removed %d orphaned blob(s) from %s", removed, stagingDir))
	}
	s.swept[key] = struct{}{}
	return nil
}

// syncBundle runs one bundle through freshness check, fetch and extraction.
func (s *Syncer) syncBundle(ctx context.Context, journal *StagingJournal, bundle *BundleEntry, index *PlacementIndex, destDir string) error {
	blobPath := journal.BlobPath(bundle.Hash)

	fresh, err := IsUpToDate(blobPath, bundle.Hash)
	if err != nil {
		return err
	}
	if fresh {
		PushLogInfo(nil, fmt.Sprintf("Bundle %s is already up to date", bundle.Hash))
		s.bundleComplete(bundle, true)
		return nil
	}

	fresh, err = filesUpToDate(index.FilesFedBy(bundle), destDir)
	if err != nil {
		return err
	}
	if fresh {
		PushLogDebug(nil, fmt.Sprintf("Every file fed by bundle %s is up to date", bundle.Hash))
		s.bundleComplete(bundle, true)
		return nil
	}

	staged, err := journal.Begin(bundle.Hash)
	if err != nil {
		return err
	}
	defer s.discardBlob(journal, staged)

	if err := s.fetchBundle(ctx, bundle, staged); err != nil {
		return err
	}

	if err := ExtractBundle(ctx, staged.Path, bundle, index, destDir, s.locker); err != nil {
		return err
	}

	PushLogInfo(nil, fmt.Sprintf("Bundle %s extracted (%d chunk(s))", bundle.Hash, len(bundle.Chunks)))
	s.bundleComplete(bundle, false)
	return nil
}

// discardBlob removes the staged blob whatever the outcome of the bundle.
func (s *Syncer) discardBlob(journal *StagingJournal, staged StagedBlob) {
	for _, path := range []string{staged.PartPath(), staged.Path} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			PushLogWarning(nil, fmt.Sprintf("Could not remove %s: %v", path, err))
			return
		}
	}
	if err := journal.Finish(staged); err != nil {
		PushLogWarning(nil, fmt.Sprintf("Could not update staging journal: %v", err))
	}
}

// fetchBundle streams the bundle blob into its part file, verifies its hash
// and moves it into place.
func (s *Syncer) fetchBundle(ctx context.Context, bundle *BundleEntry, staged StagedBlob) error {
	url, err := s.cdn.BundleURL(s.opts.Game, bundle.Hash)
	if err != nil {
		return err
	}

	s.limiter.IncrementInFlight()
	defer s.limiter.DecrementInFlight()

	PushLogInfo(nil, fmt.Sprintf("Downloading bundle %s (%s)", bundle.Hash, url))

	_, err = WaitForRetry(ctx, s.opts.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.downloadVerified(ctx, url, staged.PartPath(), bundle.Hash)
	})
	if err != nil {
		return err
	}

	if err := os.Rename(staged.PartPath(), staged.Path); err != nil {
		return ioError("rename", staged.PartPath(), err)
	}
	PushLogDebug(nil, fmt.Sprintf("Bundle %s downloaded", bundle.Hash))
	return nil
}

// downloadVerified streams url into path, truncating any previous content,
// and fails with a transport error when the content does not hash to want.
// Bytes reported to OnNetworkRead are withdrawn again when the attempt fails.
func (s *Syncer) downloadVerified(ctx context.Context, url, path, want string) error {
	body, err := s.cdn.Get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return ioError("create", path, err)
	}

	h := sha1.New()
	reported := &progressWriter{callback: s.opts.OnNetworkRead}
	reader := s.limiter.Reader(ctx, body)

	buffer := make([]byte, BufferSize)
	_, copyErr := io.CopyBuffer(io.MultiWriter(file, h, reported), onlyReader{reader}, buffer)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		reported.withdraw()
		if copyErr != nil {
			var pathErr *fs.PathError
			if errors.As(copyErr, &pathErr) {
				return ioError("write", path, copyErr)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTransport.WithMessage("stream interrupted").WithDetail("url", url).WithCause(copyErr)
		}
		return ioError("flush", path, closeErr)
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		reported.withdraw()
		return ErrTransport.WithMessage("content hash mismatch").
			WithDetail("url", url).WithDetail("got", got).WithDetail("want", want)
	}
	return nil
}

func (s *Syncer) bundleComplete(bundle *BundleEntry, skipped bool) {
	if s.opts.OnBundleComplete != nil {
		s.opts.OnBundleComplete(bundle, skipped)
	}
}

// filesUpToDate reports whether files is non-empty and every file already
// hashes to its declared hash.
func filesUpToDate(files []*FileEntry, destDir string) (bool, error) {
	if len(files) == 0 {
		return false, nil
	}
	for _, file := range files {
		if file.IsSymlink() {
			continue
		}
		target, err := DestinationPath(destDir, file.Name)
		if err != nil {
			return false, err
		}
		fresh, err := IsUpToDate(target, file.Hash)
		if err != nil || !fresh {
			return false, err
		}
	}
	return true, nil
}

// progressWriter forwards byte counts to a DelegateWriteStreamInfo and
// remembers the total so a failed attempt can be taken back.
type progressWriter struct {
	callback DelegateWriteStreamInfo
	total    int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.total += int64(len(b))
	if p.callback != nil {
		p.callback(int64(len(b)))
	}
	return len(b), nil
}

func (p *progressWriter) withdraw() {
	if p.callback != nil && p.total > 0 {
		p.callback(-p.total)
	}
	p.total = 0
}
