package logger

// lineRing keeps the most recent lines written to a log file.
type lineRing struct {
	lines []string
	next  int // index of the next write
	count int // number of populated slots
	seen  int // lines added since the last compaction
}

func newLineRing(capacity int) *lineRing {
	if capacity < 1 {
		capacity = 1
	}

	return &lineRing{lines: make([]string, capacity)}
}

func (r *lineRing) capacity() int {
	return len(r.lines)
}

func (r *lineRing) push(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)

	if r.count < len(r.lines) {
		r.count++
	}

	r.seen++
}

// ordered returns the retained lines oldest first.
func (r *lineRing) ordered() []string {
	if r.count == 0 {
		return nil
	}

	out := make([]string, 0, r.count)
	start := (r.next - r.count + len(r.lines)) % len(r.lines)

	for i := range r.count {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}

	return out
}
