package internal

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// BufferSize is the block size used when streaming files through a hash.
const BufferSize = 32 * 1024

// HashFile streams the file at path through SHA-1 in BufferSize blocks and
// returns the lowercase hex digest.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", ioError("open", path, err)
	}
	defer file.Close()

	h := sha1.New()
	buffer := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(h, onlyReader{file}, buffer); err != nil {
		return "", ioError("hash", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsUpToDate reports whether the file at path exists and hashes to expectedHash.
// A missing file is not an error, it is simply not up to date.
func IsUpToDate(path string, expectedHash string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}

	currentHash, err := HashFile(path)
	if err != nil {
		return false, err
	}

	if currentHash != expectedHash {
		PushLogDebug(nil, fmt.Sprintf("%s is not up to date (%s, want %s)", path, currentHash, expectedHash))
		return false, nil
	}
	return true, nil
}

// onlyReader hides WriterTo so io.CopyBuffer actually uses the fixed buffer.
type onlyReader struct {
	io.Reader
}
