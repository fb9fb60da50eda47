package promptdetect

// DefaultBufferCap bounds the detection-side output window. Forwarding of
// child output to the caller's streams is never truncated; the cap only
// applies to the copy used for pattern matching.
const DefaultBufferCap = 1000

// Buffer is an append-only accumulator over interleaved stdout/stderr
// bytes. When the cap is exceeded the oldest content is discarded so
// matching always sees the most recent window.
type Buffer struct {
	limit int
	data  []byte
}

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultBufferCap
	}
	return &Buffer{limit: limit}
}

func (b *Buffer) Append(p []byte) {
	if b == nil || len(p) == 0 {
		return
	}
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		tail := b.data[len(b.data)-b.limit:]
		// Copy down instead of re-slicing so the discarded head is not
		// pinned for the lifetime of the buffer.
		b.data = append(b.data[:0], tail...)
	}
}

func (b *Buffer) String() string {
	if b == nil {
		return ""
	}
	return string(b.data)
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.data = b.data[:0]
}

// Tail returns up to n trailing bytes, for log excerpts.
func (b *Buffer) Tail(n int) string {
	if b == nil || n <= 0 {
		return ""
	}
	if len(b.data) <= n {
		return string(b.data)
	}
	return string(b.data[len(b.data)-n:])
}
