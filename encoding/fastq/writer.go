package fastq

import (
	"bufio"
	"io"
)

// Writer emits reads in FASTQ format. Writes are buffered; call Flush when
// done. After the first error every Write is a no-op that returns it.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer that writes reads to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes the four lines of r.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err == nil {
		w.err = w.w.Flush()
	}
	return w.err
}

// Buffered returns the number of bytes written but not yet flushed.
func (w *Writer) Buffered() int { return w.w.Buffered() }

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = w.w.WriteString(line); w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}
