package survey

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/readsurvey/stratify"
)

// StatsFromSAM rebuilds the statistics of a saved SAM file and flushes them
// to outDir, every flushInterval records and at the end. Files ending in
// ".sz" are read as snappy streams; other compressed formats are detected
// from the extension. It returns the final summary line.
func StatsFromSAM(ctx context.Context, samPath, outDir string, flushInterval int) (summary string, err error) {
	if flushInterval <= 0 {
		return "", errors.E("flush interval must be positive")
	}
	in, err := file.Open(ctx, samPath)
	if err != nil {
		return "", errors.E(err, "open", samPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(samPath, ".sz") {
		r = snappy.NewReader(r)
	} else if u := compress.NewReaderPath(r, samPath); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}

	var (
		agg       = stratify.NewAggregator()
		interval  = int64(flushInterval)
		malformed int
		sc        = bufio.NewScanner(r)
	)
	sc.Buffer(make([]byte, 64<<10), maxLineLen)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) > 0 && line[0] == '@' {
			continue
		}
		rec, err := stratify.ParseRecord(line)
		if err == nil {
			err = agg.Update(rec)
		}
		if err != nil {
			log.Error.Printf("%s: skipping record: %v", samPath, err)
			malformed++
			continue
		}
		if agg.Total()%interval == 0 {
			if _, err := agg.Flush(ctx, agg.Total(), outDir); err != nil {
				return "", err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", errors.E(err, "read", samPath)
	}
	if summary, err = agg.Flush(ctx, agg.Total(), outDir); err != nil {
		return "", err
	}
	mapped, total := agg.MappedFraction()
	log.Printf("%s: %d records, %d malformed, %s mapped", samPath, total, malformed, percentOf(mapped, total))
	return summary, nil
}
