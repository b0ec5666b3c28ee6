package mmap

// stringTable deduplicates string payloads during a write (spec.md
// §4.5 "string table unification", applied here at single-timetable
// granularity too since it costs nothing extra).
type stringTable struct {
	buf     []byte
	offsets map[string]stringRef
}

func newStringTable() *stringTable {
	return &stringTable{offsets: map[string]stringRef{}}
}

func (t *stringTable) intern(s string) stringRef {
	if ref, ok := t.offsets[s]; ok {
		return ref
	}
	ref := stringRef{Offset: uint32(len(t.buf)), Length: uint32(len(s))}
	t.buf = append(t.buf, s...)
	t.offsets[s] = ref
	return ref
}

func (t *stringTable) bytes() []byte {
	return t.buf
}

// readString resolves a stringRef against a mmap'd strings.bin
// buffer, copying out of the mapped region so the result outlives a
// Close.
func readString(strings []byte, ref stringRef) string {
	if ref.Length == 0 {
		return ""
	}
	return string(strings[ref.Offset : ref.Offset+ref.Length])
}
