package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// JournalFileName is the journal kept inside every staging directory
const JournalFileName = ".cytrus-journal"

// PartSuffix marks a bundle blob that is still being received
const PartSuffix = ".part"

// StagingDirName is the default staging directory, created inside each
// fragment directory. Keeping blobs out of the file tree itself means a
// sweep never sees destination files.
const StagingDirName = ".cytrus-staging"

// Journal record fields. Each record is a length-delimited protobuf message.
const (
	journalFieldBundle  protowire.Number = 1
	journalFieldPath    protowire.Number = 2
	journalFieldStarted protowire.Number = 3
	journalFieldDone    protowire.Number = 4
)

// StagedBlob is a bundle blob the journal knows about.
type StagedBlob struct {
	BundleHash string
	Path       string
	Started    time.Time
}

// PartPath is where the blob is written while it is being received.
func (b StagedBlob) PartPath() string {
	return b.Path + PartSuffix
}

// StagingJournal records which temporary bundle blobs are in use so that a
// run interrupted by a crash or a kill can remove them on the next start.
type StagingJournal struct {
	dir string
	mu  sync.Mutex
}

// OpenStagingJournal returns the journal of the staging directory dir.
func OpenStagingJournal(dir string) *StagingJournal {
	return &StagingJournal{dir: dir}
}

// Path returns the location of the journal file.
func (j *StagingJournal) Path() string {
	return filepath.Join(j.dir, JournalFileName)
}

// BlobPath returns the staging location of a bundle blob.
func (j *StagingJournal) BlobPath(bundleHash string) string {
	return filepath.Join(j.dir, bundleHash)
}

// Begin records that the blob of bundleHash is about to be written.
func (j *StagingJournal) Begin(bundleHash string) (StagedBlob, error) {
	blob := StagedBlob{BundleHash: bundleHash, Path: j.BlobPath(bundleHash), Started: time.Now()}

	var record []byte
	record = protowire.AppendTag(record, journalFieldBundle, protowire.BytesType)
	record = protowire.AppendString(record, blob.BundleHash)
	record = protowire.AppendTag(record, journalFieldPath, protowire.BytesType)
	record = protowire.AppendString(record, j.relative(blob.Path))
	record = protowire.AppendTag(record, journalFieldStarted, protowire.VarintType)
	record = protowire.AppendVarint(record, uint64(blob.Started.UnixNano()))

	return blob, j.append(record)
}

// Finish records that the blob has been extracted and removed.
func (j *StagingJournal) Finish(blob StagedBlob) error {
	var record []byte
	record = protowire.AppendTag(record, journalFieldPath, protowire.BytesType)
	record = protowire.AppendString(record, j.relative(blob.Path))
	record = protowire.AppendTag(record, journalFieldDone, protowire.VarintType)
	record = protowire.AppendVarint(record, protowire.EncodeBool(true))

	return j.append(record)
}

// relative stores paths relative to the staging directory so the journal
// stays valid whatever the working directory of the next run.
func (j *StagingJournal) relative(path string) string {
	if rel, err := filepath.Rel(j.dir, path); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return path
}

func (j *StagingJournal) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(j.dir, filepath.FromSlash(path))
}

func (j *StagingJournal) append(record []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := EnsureDirectory(j.dir); err != nil {
		return err
	}

	file, err := os.OpenFile(j.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return ioError("open journal", j.Path(), err)
	}

	if _, err := file.Write(protowire.AppendBytes(nil, record)); err != nil {
		file.Close()
		return ioError("write journal", j.Path(), err)
	}
	if err := file.Close(); err != nil {
		return ioError("flush journal", j.Path(), err)
	}
	return nil
}

// Pending returns the blobs that were begun but never finished.
func (j *StagingJournal) Pending() ([]StagedBlob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pendingLocked()
}

func (j *StagingJournal) pendingLocked() ([]StagedBlob, error) {
	data, err := os.ReadFile(j.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("read journal", j.Path(), err)
	}

	var order []string
	open := make(map[string]StagedBlob)

	for len(data) > 0 {
		record, n := protowire.ConsumeBytes(data)
		if n < 0 {
			// A torn tail from an interrupted append; everything before it is intact.
			PushLogWarning(nil, fmt.Sprintf("Journal %s has a damaged tail: %v", j.Path(), protowire.ParseError(n)))
			break
		}
		data = data[n:]

		blob, done, err := parseJournalRecord(record)
		if err != nil {
			PushLogWarning(nil, fmt.Sprintf("Skipping damaged journal record in %s: %v", j.Path(), err))
			continue
		}
		blob.Path = j.resolve(blob.Path)

		if done {
			delete(open, blob.Path)
			continue
		}
		if _, seen := open[blob.Path]; !seen {
			order = append(order, blob.Path)
		}
		open[blob.Path] = blob
	}

	var pending []StagedBlob
	for _, path := range order {
		if blob, ok := open[path]; ok {
			pending = append(pending, blob)
			delete(open, path)
		}
	}
	return pending, nil
}

func parseJournalRecord(record []byte) (blob StagedBlob, done bool, err error) {
	for len(record) > 0 {
		num, typ, n := protowire.ConsumeTag(record)
		if n < 0 {
			return blob, false, protowire.ParseError(n)
		}
		record = record[n:]

		switch {
		case num == journalFieldBundle && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(record)
			if m < 0 {
				return blob, false, protowire.ParseError(m)
			}
			blob.BundleHash = v
			n = m
		case num == journalFieldPath && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(record)
			if m < 0 {
				return blob, false, protowire.ParseError(m)
			}
			blob.Path = v
			n = m
		case num == journalFieldStarted && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(record)
			if m < 0 {
				return blob, false, protowire.ParseError(m)
			}
			blob.Started = time.Unix(0, int64(v))
			n = m
		case num == journalFieldDone && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(record)
			if m < 0 {
				return blob, false, protowire.ParseError(m)
			}
			done = protowire.DecodeBool(v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, record)
			if n < 0 {
				return blob, false, protowire.ParseError(n)
			}
		}
		record = record[n:]
	}

	if blob.Path == "" {
		return blob, false, errors.New("record has no path")
	}
	return blob, done, nil
}

// Sweep removes every blob left behind by an earlier run: journaled blobs that
// were never finished and any stray part file named after a bundle hash. The
// journal is reset afterwards.
// It returns the number of files removed.
func (j *StagingJournal) Sweep() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pending, err := j.pendingLocked()
	if err != nil {
		return 0, err
	}

	targets := make(map[string]struct{})
	for _, blob := range pending {
		targets[blob.Path] = struct{}{}
		targets[blob.PartPath()] = struct{}{}
	}

	parts, err := filepath.Glob(filepath.Join(j.dir, "*"+PartSuffix))
	if err != nil {
		return 0, fmt.Errorf("listing part files in %s: %w", j.dir, err)
	}
	for _, p := range parts {
		// Only part files named after a bundle hash are ours.
		if isBundleHash(strings.TrimSuffix(filepath.Base(p), PartSuffix)) {
			targets[p] = struct{}{}
		}
	}

	removed := 0
	for path := range targets {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, ioError("remove orphan", path, err)
		}
		PushLogInfo(nil, fmt.Sprintf("Removed orphaned bundle blob %s", path))
		removed++
	}

	if err := os.Remove(j.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return removed, ioError("reset journal", j.Path(), err)
	}
	return removed, nil
}

func isBundleHash(name string) bool {
	if len(name) != 2*HashSize {
		return false
	}
	for _, c := range name {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
