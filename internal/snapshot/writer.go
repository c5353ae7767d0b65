package snapshot

import "strconv"

const hexDigits = "0123456789abcdef"

// writer appends to a fixed buffer, keeping the last byte free for NUL.
// Writes past the limit are dropped and recorded in overflow.
type writer struct {
	buf      []byte
	n        int
	limit    int
	overflow bool
}

func newWriter(out []byte) writer {
	return writer{buf: out, limit: len(out) - 1}
}

func (w *writer) byte(c byte) {
	if w.n >= w.limit {
		w.overflow = true
		return
	}
	w.buf[w.n] = c
	w.n++
}

func (w *writer) raw(s string) {
	room := w.limit - w.n
	if len(s) > room {
		w.n += copy(w.buf[w.n:w.limit], s)
		w.overflow = true
		return
	}
	w.n += copy(w.buf[w.n:], s)
}

func (w *writer) rawBytes(b []byte) {
	room := w.limit - w.n
	if len(b) > room {
		w.n += copy(w.buf[w.n:w.limit], b)
		w.overflow = true
		return
	}
	w.n += copy(w.buf[w.n:], b)
}

// quoted writes s as a JSON string.
func (w *writer) quoted(s string) {
	w.byte('"')
	w.escapedString(s)
	w.byte('"')
}

func (w *writer) escapedString(s string) {
	for i := 0; i < len(s); i++ {
		w.escaped(s[i])
	}
}

// quotedBytes writes b as a JSON string.
func (w *writer) quotedBytes(b []byte) {
	w.byte('"')
	for _, c := range b {
		w.escaped(c)
	}
	w.byte('"')
}

func (w *writer) escaped(c byte) {
	switch {
	case c == '"' || c == '\\':
		w.byte('\\')
		w.byte(c)
	case c < 0x20:
		w.raw(`\u00`)
		w.byte(hexDigits[c>>4])
		w.byte(hexDigits[c&0x0F])
	default:
		w.byte(c)
	}
}

func (w *writer) int(v int) {
	var scratch [20]byte
	w.rawBytes(strconv.AppendInt(scratch[:0], int64(v), 10))
}

func (w *writer) bool(v bool) {
	if v {
		w.raw("true")
		return
	}
	w.raw("false")
}

// decimal writes v with one digit after the point.
func (w *writer) decimal(v float64) {
	if v == 0 {
		v = 0 // drop negative zero
	}
	var scratch [24]byte
	w.rawBytes(strconv.AppendFloat(scratch[:0], v, 'f', 1, 64))
}

// field writes the ,"name": prefix of an object member.
func (w *writer) field(name string) {
	w.byte(',')
	w.quoted(name)
	w.byte(':')
}

// finish terminates the buffer and returns the JSON length.
func (w *writer) finish() int {
	w.buf[w.n] = 0
	return w.n
}
