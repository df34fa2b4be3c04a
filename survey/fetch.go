package survey

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	pkgerrors "github.com/pkg/errors"
)

// Fetcher retrieves remote read files.
type Fetcher interface {
	// Fetch copies the file at url to the local path dst.
	Fetch(ctx context.Context, url, dst string) error
	// Open streams the file at url.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// DefaultFetcher fetches http and https URLs with an HTTP client and ftp URLs
// with curl. Anything else is opened through grailbio/base/file, which
// covers local paths and any registered scheme such as s3.
type DefaultFetcher struct {
	// Client is the HTTP client. Nil means http.DefaultClient.
	Client *http.Client
	// Curl is the curl executable used for ftp. Empty means "curl".
	Curl string
}

func (f DefaultFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f DefaultFetcher) curl() string {
	if f.Curl != "" {
		return f.Curl
	}
	return "curl"
}

func scheme(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Fetch implements Fetcher.
func (f DefaultFetcher) Fetch(ctx context.Context, url, dst string) error {
	if scheme(url) == "ftp" {
		cmd := exec.CommandContext(ctx, f.curl(), "-sSf", "-o", dst, url)
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return pkgerrors.Wrapf(err, "curl %s", url)
		}
		return nil
	}
	src, err := f.Open(ctx, url)
	if err != nil {
		return err
	}
	out, err := file.Create(ctx, dst)
	if err != nil {
		_ = src.Close()
		return errors.E(err, "create", dst)
	}
	_, err = io.Copy(out.Writer(ctx), src)
	once := errors.Once{}
	once.Set(pkgerrors.Wrapf(err, "copy %s", url))
	once.Set(src.Close())
	once.Set(out.Close(ctx))
	return once.Err()
}

// Open implements Fetcher.
func (f DefaultFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	switch scheme(url) {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "request %s", url)
		}
		resp, err := f.client().Do(req.WithContext(ctx))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "get %s", url)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, pkgerrors.Errorf("get %s: %s", url, resp.Status)
		}
		return resp.Body, nil
	case "ftp":
		cmd := exec.CommandContext(ctx, f.curl(), "-sSf", url)
		cmd.Stderr = os.Stderr
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, pkgerrors.Wrapf(err, "start curl for %s", url)
		}
		return &cmdReader{ReadCloser: out, cmd: cmd, url: url}, nil
	default:
		in, err := file.Open(ctx, url)
		if err != nil {
			return nil, errors.E(err, "open", url)
		}
		return &fileReader{Reader: in.Reader(ctx), f: in, ctx: ctx}, nil
	}
}

// cmdReader is the stdout of a running command. Close reaps the command and
// reports a non-zero exit.
type cmdReader struct {
	io.ReadCloser
	cmd *exec.Cmd
	url string
}

func (r *cmdReader) Close() error {
	_ = r.ReadCloser.Close()
	if err := r.cmd.Wait(); err != nil {
		return pkgerrors.Wrapf(err, "curl %s", r.url)
	}
	return nil
}

type fileReader struct {
	io.Reader
	f   file.File
	ctx context.Context
}

func (r *fileReader) Close() error { return r.f.Close(r.ctx) }

// DownloadError is returned by Download once every attempt has failed.
type DownloadError struct {
	URL      string
	Attempts int
	// Err is the error from the last attempt.
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: failed %d times: %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Download fetches url to the local path dst unless dst already exists.
// Each attempt writes to a uniquely named temporary file next to dst, which
// is renamed to dst on success and removed on failure, so dst never holds a
// partial file. Attempts are spaced policy.Delay apart.
func Download(ctx context.Context, f Fetcher, url, dst string, policy RetryPolicy) error {
	if _, err := file.Stat(ctx, dst); err == nil {
		log.Debug.Printf("download %s: %s already present", url, dst)
		return nil
	}
	tmp := fmt.Sprintf("%s.%s.tmp", dst, uuid.New().String())
	backoff := retry.MaxTries(retry.Backoff(policy.Delay, policy.Delay, 1), policy.Attempts)
	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		start := time.Now()
		if err = f.Fetch(ctx, url, tmp); err == nil {
			if err = os.Rename(tmp, dst); err == nil {
				log.Printf("downloaded %s to %s in %v", url, dst, time.Since(start))
				return nil
			}
		}
		log.Error.Printf("download %s: attempt %d of %d: %v", url, attempt, policy.Attempts, err)
		if e := file.Remove(ctx, tmp); e != nil && !os.IsNotExist(e) {
			log.Debug.Printf("remove %s: %v", tmp, e)
		}
		if attempt == policy.Attempts {
			break
		}
		if werr := retry.Wait(ctx, backoff, attempt-1); werr != nil {
			if ctx.Err() != nil {
				werr = ctx.Err()
			}
			return &DownloadError{URL: url, Attempts: attempt, Err: werr}
		}
	}
	return &DownloadError{URL: url, Attempts: policy.Attempts, Err: err}
}
