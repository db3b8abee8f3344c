package manifestfb

// The generated accessors report an absent vector and an empty one the same
// way (length 0). The decoder needs to tell them apart, so these read the
// vtable slot directly.

// HasFragments reports whether the fragments vector is present.
func (rcv *Manifest) HasFragments() bool {
	return rcv._tab.Offset(4) != 0
}

// HasFiles reports whether the files vector is present.
func (rcv *Fragment) HasFiles() bool {
	return rcv._tab.Offset(6) != 0
}

// HasBundles reports whether the bundles vector is present.
func (rcv *Fragment) HasBundles() bool {
	return rcv._tab.Offset(8) != 0
}

// HasChunks reports whether the file carries an explicit chunk list.
func (rcv *File) HasChunks() bool {
	return rcv._tab.Offset(10) != 0
}

// HasChunks reports whether the bundle carries a chunk list.
func (rcv *Bundle) HasChunks() bool {
	return rcv._tab.Offset(6) != 0
}

// HashBytes copies the signed hash vector into a byte slice.
func (rcv *Chunk) HashBytes() []byte {
	return int8Vector(rcv.HashLength(), rcv.Hash)
}

// HashBytes copies the signed hash vector into a byte slice.
func (rcv *File) HashBytes() []byte {
	return int8Vector(rcv.HashLength(), rcv.Hash)
}

// HashBytes copies the signed hash vector into a byte slice.
func (rcv *Bundle) HashBytes() []byte {
	return int8Vector(rcv.HashLength(), rcv.Hash)
}

func int8Vector(n int, at func(int) int8) []byte {
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(at(i))
	}
	return out
}
