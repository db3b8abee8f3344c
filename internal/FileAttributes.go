package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TrimOversizedFiles cuts destination files that are longer than their
// declared size. Extraction never truncates, so without this a file that
// shrank between two releases would keep a stale tail.
func TrimOversizedFiles(fragment *Fragment, destDir string, locker *PathLocker) error {
	for _, file := range fragment.Files {
		if file.IsSymlink() {
			continue
		}
		target, err := DestinationPath(destDir, file.Name)
		if err != nil {
			return err
		}

		info, err := os.Lstat(target)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return ioError("stat", target, err)
		}
		if !info.Mode().IsRegular() || info.Size() <= file.Size {
			continue
		}

		PushLogDebug(nil, fmt.Sprintf("Trimming %s from %d to %d bytes", target, info.Size(), file.Size))
		err = locker.WithLock(target, func() error {
			if err := os.Truncate(target, file.Size); err != nil {
				return ioError("truncate", target, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ApplyFileAttributes finishes a synchronized fragment: empty files are
// created, executable files get their mode bits and symlink entries become links.
func ApplyFileAttributes(fragment *Fragment, destDir string, locker *PathLocker) error {
	for _, file := range fragment.Files {
		target, err := DestinationPath(destDir, file.Name)
		if err != nil {
			return err
		}

		if file.IsSymlink() {
			if err := ensureSymlink(target, file.Symlink); err != nil {
				return err
			}
			continue
		}

		if file.Size == 0 {
			if err := ensureEmptyFile(target, locker); err != nil {
				return err
			}
		}

		if file.Executable {
			if err := os.Chmod(target, 0755); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					PushLogWarning(nil, fmt.Sprintf("Executable %s is missing", target))
					continue
				}
				return ioError("chmod", target, err)
			}
		}
	}
	return nil
}

func ensureEmptyFile(target string, locker *PathLocker) error {
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() && info.Size() == 0 {
		return nil
	}
	if err := EnsureDirectory(filepath.Dir(target)); err != nil {
		return err
	}
	return locker.WithLock(target, func() error {
		if err := os.WriteFile(target, nil, 0644); err != nil {
			return ioError("create", target, err)
		}
		return nil
	})
}

func ensureSymlink(target, linkTo string) error {
	if current, err := os.Readlink(target); err == nil && current == linkTo {
		return nil
	}

	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			return ErrIO.WithMessage("cannot replace directory %s with a symlink", target)
		}
		if err := os.Remove(target); err != nil {
			return ioError("remove", target, err)
		}
	}

	if err := EnsureDirectory(filepath.Dir(target)); err != nil {
		return err
	}
	if err := os.Symlink(linkTo, target); err != nil {
		return ioError("symlink", target, err)
	}
	PushLogDebug(nil, fmt.Sprintf("Linked %s -> %s", target, linkTo))
	return nil
}
