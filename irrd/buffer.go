package irrd

import "fmt"

// buffer is a growable, compacting staging area for bytes read from the
// transport but not yet consumed by the frame parser. Bytes before the read
// cursor are consumed and reclaimable, bytes between the cursors are
// unconsumed, bytes after the write cursor are free capacity.
type buffer struct {
	storage []byte
	read    int
	write   int
}

func newBuffer(capacity int) *buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &buffer{storage: make([]byte, capacity)}
}

// unconsumed returns the readable byte range between the cursors. The slice
// is only valid until the next reserve or consume call.
func (buf *buffer) unconsumed() []byte {
	return buf.storage[buf.read:buf.write]
}

func (buf *buffer) len() int {
	return buf.write - buf.read
}

// reserve ensures at least n bytes of contiguous writable capacity beyond
// the write cursor, shifting consumed bytes out first and growing storage
// only if compaction alone is not enough.
func (buf *buffer) reserve(n int) {
	if len(buf.storage)-buf.write >= n {
		return
	}
	if buf.read > 0 {
		copy(buf.storage, buf.storage[buf.read:buf.write])
		buf.write -= buf.read
		buf.read = 0
	}
	if len(buf.storage)-buf.write >= n {
		return
	}
	capacity := len(buf.storage) * 2
	for capacity-buf.write < n {
		capacity *= 2
	}
	grown := make([]byte, capacity)
	copy(grown, buf.storage[:buf.write])
	buf.storage = grown
}

// writableRegion returns the raw free space after the write cursor for the
// transport to fill; the caller reports the fill via advance.
func (buf *buffer) writableRegion() []byte {
	return buf.storage[buf.write:]
}

// advance moves the write cursor after n bytes were written into the
// writable region.
func (buf *buffer) advance(n int) {
	if n < 0 || buf.write+n > len(buf.storage) {
		panic(fmt.Sprintf("irrd: buffer advance %d outside writable region", n))
	}
	buf.write += n
}

// consume moves the read cursor past n unconsumed bytes. Consuming more than
// is available is a programmer error, not a protocol condition.
func (buf *buffer) consume(n int) {
	if n < 0 || n > buf.len() {
		panic(fmt.Sprintf("irrd: buffer consume %d exceeds %d unconsumed bytes", n, buf.len()))
	}
	buf.read += n
	if buf.read == buf.write {
		buf.read = 0
		buf.write = 0
	}
}
