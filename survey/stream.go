package survey

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// maxLineLen bounds a single line of aligner output.
const maxLineLen = 1 << 20

// AlignerError reports an aligner that could not be started or that exited
// unsuccessfully.
type AlignerError struct {
	Aligner string
	Err     error
}

func (e *AlignerError) Error() string {
	return fmt.Sprintf("aligner %s: %v", e.Aligner, e.Err)
}

func (e *AlignerError) Unwrap() error { return e.Err }

// openSource opens the read file for a job: the downloaded copy at local if
// non-empty, else a stream from url.
func openSource(ctx context.Context, f Fetcher, url, local string) (io.ReadCloser, error) {
	if local == "" {
		return f.Open(ctx, url)
	}
	in, err := file.Open(ctx, local)
	if err != nil {
		return nil, errors.E(err, "open", local)
	}
	return &fileReader{Reader: in.Reader(ctx), f: in, ctx: ctx}, nil
}

// decompress wraps r with a decompressor chosen by the extension of name.
// Unrecognized extensions pass r through.
func decompress(r io.Reader, name string) (io.ReadCloser, error) {
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "gzip", name)
		}
		return zr, nil
	}
	if u := compress.NewReaderPath(r, name); u != nil {
		return u, nil
	}
	return ioutil.NopCloser(r), nil
}

// inputError reports a failure reading the aligner's input.
type inputError struct{ err error }

func (e *inputError) Error() string { return "read aligner input: " + e.err.Error() }

// sourceReader remembers the first read error from the underlying reader,
// so a failing source can be told apart from an aligner that stopped
// reading.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// align runs the aligner with src on its stdin and calls fn for every line
// the aligner writes to stdout, in output order, without the trailing
// newline. The slice passed to fn is only valid during the call. If fn
// fails the aligner is killed and fn's error is returned.
func align(ctx context.Context, opts *Opts, src io.Reader, fn func(line []byte) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Aligner, opts.alignerArgs()...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &AlignerError{opts.Aligner, err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &AlignerError{opts.Aligner, err}
	}
	if err := cmd.Start(); err != nil {
		return &AlignerError{opts.Aligner, err}
	}

	sr := &sourceReader{r: src}
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := io.Copy(stdin, sr)
		if e := stdin.Close(); err == nil {
			err = e
		}
		return err
	})

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64<<10), maxLineLen)
	var fnErr error
	for sc.Scan() {
		if fnErr = fn(sc.Bytes()); fnErr != nil {
			break
		}
	}
	scanErr := sc.Err()
	if fnErr != nil || scanErr != nil {
		cancel()
		// Drain so the aligner is not blocked writing when it is reaped.
		_, _ = io.Copy(ioutil.Discard, stdout)
	}
	waitErr := cmd.Wait()
	feedErr := eg.Wait()
	switch {
	case fnErr != nil:
		return fnErr
	case sr.err != nil:
		return &inputError{sr.err}
	case scanErr != nil:
		return &AlignerError{opts.Aligner, errors.E(scanErr, "read aligner output")}
	case waitErr != nil:
		return &AlignerError{opts.Aligner, waitErr}
	case feedErr != nil:
		return &AlignerError{opts.Aligner, errors.E(feedErr, "write aligner input")}
	}
	return nil
}
