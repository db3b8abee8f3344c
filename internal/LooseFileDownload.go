package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// DownloadLooseFile fetches a whole file by content hash and moves it into
// place atomically. A file that already hashes to its declared hash is left
// alone. The content is verified before the rename, so the destination never
// holds unverified bytes.
func (s *Syncer) DownloadLooseFile(ctx context.Context, file *FileEntry, destDir string) error {
	target, err := DestinationPath(destDir, file.Name)
	if err != nil {
		return err
	}

	fresh, err := IsUpToDate(target, file.Hash)
	if err != nil {
		return err
	}
	if fresh {
		PushLogDebug(nil, fmt.Sprintf("File %s is already up to date", file.Name))
		s.fileComplete(file, true)
		return nil
	}

	url, err := s.cdn.HashURL(s.opts.Game, file.Hash)
	if err != nil {
		return err
	}

	if err := EnsureDirectory(filepath.Dir(target)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*"+PartSuffix)
	if err != nil {
		return ioError("create temporary file for", target, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	PushLogInfo(nil, fmt.Sprintf("Downloading file %s (%s)", file.Name, url))

	s.limiter.IncrementInFlight()
	_, err = WaitForRetry(ctx, s.opts.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.downloadVerified(ctx, url, tmpPath, file.Hash)
	})
	s.limiter.DecrementInFlight()
	if err != nil {
		return err
	}

	err = s.locker.WithLock(target, func() error {
		if err := os.Rename(tmpPath, target); err != nil {
			return ioError("rename", tmpPath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	PushLogInfo(nil, fmt.Sprintf("File %s downloaded", file.Name))
	s.fileComplete(file, false)
	return nil
}

// syncLooseFiles downloads every file of fragment that no bundle produces.
func (s *Syncer) syncLooseFiles(ctx context.Context, fragment *Fragment, destDir string) error {
	files := UnbundledFiles(fragment)
	if len(files) == 0 {
		return nil
	}

	PushLogInfo(nil, fmt.Sprintf("Fragment %s has %d file(s) outside of any bundle", fragment.Name, len(files)))

	var g errgroup.Group
	if s.opts.MaxConcurrentBundles > 0 {
		g.SetLimit(s.opts.MaxConcurrentBundles)
	}
	for _, file := range files {
		file := file
		g.Go(func() error {
			return s.DownloadLooseFile(ctx, file, destDir)
		})
	}
	return g.Wait()
}

func (s *Syncer) fileComplete(file *FileEntry, skipped bool) {
	if s.opts.OnFileComplete != nil {
		s.opts.OnFileComplete(file, skipped)
	}
}
