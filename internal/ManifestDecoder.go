package internal

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/riverfog7/CytrusClient/internal/manifestfb"
)

// HashSize is the raw length of every digest carried by the manifest.
const HashSize = sha1.Size

// zstdMagic prefixes a zstd frame. Manifests served compressed start with it.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// DecodeManifest converts the binary manifest into the in-memory model.
// Missing fragments, files, bundles or bundle chunk lists are fatal. A file
// without a chunk list is accepted and treated as one implicit chunk.
func DecodeManifest(data []byte) (manifest *Manifest, err error) {
	if bytes.HasPrefix(data, zstdMagic) {
		data, err = inflateManifest(data)
		if err != nil {
			return nil, err
		}
	}

	if len(data) < 8 {
		return nil, ErrDecode.WithMessage("manifest is too short: %d bytes", len(data))
	}

	// The flatbuffers accessors index the buffer without bounds checks of
	// their own; a truncated or corrupted buffer surfaces as a panic.
	defer func() {
		if r := recover(); r != nil {
			manifest = nil
			err = ErrDecode.WithMessage("manifest buffer is corrupted").WithCause(fmt.Errorf("%v", r))
		}
	}()

	root := manifestfb.GetRootAsManifest(data, 0)
	if !root.HasFragments() {
		return nil, ErrDecode.WithMessage("could not find any fragments")
	}

	manifest = &Manifest{Fragments: make([]*Fragment, 0, root.FragmentsLength())}

	var fragmentFb manifestfb.Fragment
	for i := 0; i < root.FragmentsLength(); i++ {
		root.Fragments(&fragmentFb, i)
		fragment, err := decodeFragment(&fragmentFb)
		if err != nil {
			return nil, err
		}
		manifest.Fragments = append(manifest.Fragments, fragment)
	}

	PushLogDebug(nil, fmt.Sprintf("Decoded manifest with %d fragment(s)", len(manifest.Fragments)))
	return manifest, nil
}

func inflateManifest(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, ErrDecode.WithMessage("could not create zstd decoder").WithCause(err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, ErrDecode.WithMessage("could not inflate compressed manifest").WithCause(err)
	}
	return out, nil
}

func decodeFragment(fb *manifestfb.Fragment) (*Fragment, error) {
	name := fb.Name()
	if name == nil {
		return nil, ErrDecode.WithMessage("fragment has no name")
	}

	fragment := &Fragment{Name: string(name)}

	if !fb.HasFiles() {
		return nil, ErrDecode.WithMessage("could not find any files").WithDetail("fragment", fragment.Name)
	}
	fragment.Files = make([]*FileEntry, 0, fb.FilesLength())

	var fileFb manifestfb.File
	for i := 0; i < fb.FilesLength(); i++ {
		fb.Files(&fileFb, i)
		file, err := decodeFile(&fileFb)
		if err != nil {
			return nil, err.WithDetail("fragment", fragment.Name)
		}
		fragment.Files = append(fragment.Files, file)
	}

	if !fb.HasBundles() {
		return nil, ErrDecode.WithMessage("could not find any bundles").WithDetail("fragment", fragment.Name)
	}
	fragment.Bundles = make([]*BundleEntry, 0, fb.BundlesLength())

	var bundleFb manifestfb.Bundle
	for i := 0; i < fb.BundlesLength(); i++ {
		fb.Bundles(&bundleFb, i)
		bundle, err := decodeBundle(&bundleFb)
		if err != nil {
			return nil, err.WithDetail("fragment", fragment.Name)
		}
		fragment.Bundles = append(fragment.Bundles, bundle)
	}

	return fragment, nil
}

func decodeFile(fb *manifestfb.File) (*FileEntry, *CytrusError) {
	name := fb.Name()
	if name == nil {
		return nil, ErrDecode.WithMessage("file has no name")
	}

	hash, err := HashToHex(fb.HashBytes())
	if err != nil {
		return nil, err.WithDetail("file", string(name))
	}

	if fb.Size() < 0 {
		return nil, ErrDecode.WithMessage("file has a negative size").WithDetail("file", string(name))
	}

	file := &FileEntry{
		Name:       string(name),
		Size:       fb.Size(),
		Hash:       hash,
		Executable: fb.Executable(),
		Symlink:    string(fb.Symlink()),
	}

	// An absent chunk list is not an error: the file is one implicit chunk.
	if !fb.HasChunks() {
		return file, nil
	}

	file.Chunks = make([]ChunkPlacement, 0, fb.ChunksLength())
	var chunkFb manifestfb.Chunk
	for i := 0; i < fb.ChunksLength(); i++ {
		fb.Chunks(&chunkFb, i)
		chunkHash, err := HashToHex(chunkFb.HashBytes())
		if err != nil {
			return nil, err.WithDetail("file", file.Name).WithDetail("chunk", i)
		}
		if chunkFb.Size() < 0 || chunkFb.Offset() < 0 {
			return nil, ErrDecode.WithMessage("chunk has a negative size or offset").
				WithDetail("file", file.Name).WithDetail("chunk", i)
		}
		file.Chunks = append(file.Chunks, ChunkPlacement{
			Hash:       chunkHash,
			Size:       chunkFb.Size(),
			FileOffset: chunkFb.Offset(),
		})
	}

	return file, nil
}

func decodeBundle(fb *manifestfb.Bundle) (*BundleEntry, *CytrusError) {
	hash, err := HashToHex(fb.HashBytes())
	if err != nil {
		return nil, err
	}

	bundle := &BundleEntry{Hash: hash}

	if !fb.HasChunks() {
		return nil, ErrDecode.WithMessage("could not find any chunks").WithDetail("bundle", hash)
	}
	bundle.Chunks = make([]ChunkDescriptor, 0, fb.ChunksLength())

	var chunkFb manifestfb.Chunk
	for i := 0; i < fb.ChunksLength(); i++ {
		fb.Chunks(&chunkFb, i)
		chunkHash, err := HashToHex(chunkFb.HashBytes())
		if err != nil {
			return nil, err.WithDetail("bundle", hash).WithDetail("chunk", i)
		}
		if chunkFb.Size() < 0 || chunkFb.Offset() < 0 {
			return nil, ErrDecode.WithMessage("chunk has a negative size or offset").
				WithDetail("bundle", hash).WithDetail("chunk", i)
		}
		bundle.Chunks = append(bundle.Chunks, ChunkDescriptor{
			Hash:         chunkHash,
			Size:         chunkFb.Size(),
			BundleOffset: chunkFb.Offset(),
		})
	}

	return bundle, nil
}

// HashToHex renders a raw manifest digest in its canonical lowercase hex form.
// This is the only place raw digests become comparable strings.
func HashToHex(raw []byte) (string, *CytrusError) {
	if len(raw) != HashSize {
		return "", ErrDecode.WithMessage("hash is %d bytes, want %d", len(raw), HashSize)
	}
	return hex.EncodeToString(raw), nil
}
