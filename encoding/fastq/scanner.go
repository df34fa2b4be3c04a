// Package fastq reads and writes FASTQ files.
package fastq

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// A Read is a FASTQ read: the ID line (including the leading '@'), the
// sequence, line 3 (starting with '+'), and the quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// NewRead builds a Read for a read called name. The ID gets the '@' prefix
// and line 3 is a bare "+".
func NewRead(name, seq, qual string) Read {
	return Read{ID: "@" + name, Seq: seq, Unk: "+", Qual: qual}
}

// Name returns the read name without the '@' prefix.
func (r *Read) Name() string {
	if len(r.ID) > 0 && r.ID[0] == '@' {
		return r.ID[1:]
	}
	return r.ID
}

var errEOF = errors.New("eof")

// Scanner reads FASTQ records one at a time. It requires ID lines to begin
// with '@' and line 3 to begin with '+', and does no other validation.
// Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
}

// NewScanner constructs a Scanner that reads raw FASTQ data from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &Scanner{b: b}
}

// Scan reads the next record into read and reports whether it succeeded.
// Once Scan returns false it never returns true again; check Err to tell
// the end of the stream from a failure.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	read.ID = string(id)
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Bytes()
	if len(unk) == 0 || unk[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	read.Unk = string(unk)
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// Count returns the number of records in r.
func Count(r io.Reader) (int, error) {
	var (
		sc   = NewScanner(r)
		read Read
		n    int
	)
	for sc.Scan(&read) {
		n++
	}
	return n, sc.Err()
}
