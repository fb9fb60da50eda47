package promptdetect

// Detector evaluates the buffered output window against an ordered rule
// table. Buffering, rather than matching each chunk in isolation, lets
// it recognize prompts split across I/O deliveries and prompts spanning
// multiple lines.
//
// Detector is not safe for concurrent use; the owning attempt's event
// loop is expected to be its only caller.
type Detector struct {
	table *Table
	buf   *Buffer
}

func NewDetector(table *Table, bufferCap int) *Detector {
	if table == nil {
		table = BuiltinTable()
	}
	return &Detector{table: table, buf: NewBuffer(bufferCap)}
}

// Append adds newly arrived output bytes to the detection window without
// scanning. Used while a response is in flight, when no rule may fire.
func (d *Detector) Append(p []byte) {
	if d == nil {
		return
	}
	d.buf.Append(p)
}

// Scan evaluates the current window and returns the first matching rule.
func (d *Detector) Scan() (Rule, bool) {
	if d == nil {
		return Rule{}, false
	}
	return d.table.Match(d.buf.String())
}

// Feed appends then scans.
func (d *Detector) Feed(p []byte) (Rule, bool) {
	d.Append(p)
	return d.Scan()
}

// Clear drops the buffered window so already-answered prompt text cannot
// re-trigger a response.
func (d *Detector) Clear() {
	if d == nil {
		return
	}
	d.buf.Reset()
}

// Excerpt returns a short trailing slice of the window for logging.
func (d *Detector) Excerpt() string {
	if d == nil {
		return ""
	}
	return d.buf.Tail(120)
}

func (d *Detector) BufferLen() int {
	if d == nil {
		return 0
	}
	return d.buf.Len()
}
