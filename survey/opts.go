package survey

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/grailbio/base/errors"
)

// SAMFile is the name of the aligner output saved in each job directory.
// With Opts.CompressSAM the file gets a ".sz" suffix.
const SAMFile = "all.sam"

// RetryPolicy bounds the download attempts for one file.
type RetryPolicy struct {
	// Attempts is the maximum number of tries, including the first.
	Attempts int `toml:"attempts"`
	// Delay is the pause between consecutive tries.
	Delay time.Duration `toml:"delay"`
}

// Opts configures a Run.
type Opts struct {
	// OutDir is the output root. Run-wide statistics are written here and
	// each job gets <OutDir>/<group>/<name>/.
	OutDir string `toml:"out-dir"`
	// DownloadDir holds read files fetched in download-first mode.
	DownloadDir string `toml:"download-dir"`
	// Workers is the number of jobs processed concurrently.
	Workers int `toml:"workers"`
	// Aligner is the aligner executable. It is invoked as
	//   Aligner AlignerArgs... StdinArgs...
	// and must read FASTQ on stdin and write SAM on stdout.
	Aligner     string   `toml:"aligner"`
	AlignerArgs []string `toml:"aligner-args"`
	StdinArgs   []string `toml:"stdin-args"`
	// DownloadFirst downloads each read file completely before aligning it.
	// Otherwise the file is streamed straight from its URL.
	DownloadFirst bool `toml:"download-first"`
	// KeepDownloads keeps downloaded read files after their job completes.
	KeepDownloads bool `toml:"keep-downloads"`
	// SkipExisting skips jobs whose output directory already holds a SAM
	// file.
	SkipExisting bool `toml:"skip-existing"`
	// FailFast aborts the whole run on the first job failure. Otherwise
	// failed jobs are logged, reported in Result.Failed, and the run goes on.
	FailFast bool `toml:"fail-fast"`
	// CompressSAM writes the per-job SAM file snappy-compressed.
	CompressSAM bool `toml:"compress-sam"`
	// FlushInterval is the number of records between periodic flushes of an
	// aggregator.
	FlushInterval int         `toml:"flush-interval"`
	Retry         RetryPolicy `toml:"retry"`

	// Fetcher retrieves read files. Nil means DefaultFetcher.
	Fetcher Fetcher `toml:"-"`
}

// DefaultOpts are the default settings for a Run.
var DefaultOpts = Opts{
	OutDir:        "out",
	DownloadDir:   ".",
	Workers:       runtime.NumCPU(),
	StdinArgs:     []string{"-U", "-", "--mm"},
	DownloadFirst: true,
	KeepDownloads: true,
	SkipExisting:  true,
	FailFast:      true,
	FlushInterval: 100000,
	Retry: RetryPolicy{
		Attempts: 5,
		Delay:    10 * time.Second,
	},
}

// LoadConfig overlays the TOML file at path onto opts. Keys absent from the
// file leave the corresponding field untouched. A missing file is not an
// error.
func LoadConfig(path string, opts *Opts) error {
	if path == "" {
		return errors.E("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.E(err, "stat config", path)
	}
	md, err := toml.DecodeFile(path, opts)
	if err != nil {
		return errors.E(err, "decode config", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.E(fmt.Sprintf("config %s: unknown keys %v", path, undecoded))
	}
	return nil
}

// Validate reports the first invalid setting in o.
func (o *Opts) Validate() error {
	switch {
	case o.OutDir == "":
		return errors.E("output directory not set")
	case o.Aligner == "":
		return errors.E("aligner not set")
	case o.Workers <= 0:
		return errors.E(fmt.Sprintf("workers must be positive, got %d", o.Workers))
	case o.FlushInterval <= 0:
		return errors.E(fmt.Sprintf("flush interval must be positive, got %d", o.FlushInterval))
	case o.Retry.Attempts <= 0:
		return errors.E(fmt.Sprintf("retry attempts must be positive, got %d", o.Retry.Attempts))
	case o.Retry.Delay < 0:
		return errors.E(fmt.Sprintf("negative retry delay %v", o.Retry.Delay))
	case o.DownloadFirst && o.DownloadDir == "":
		return errors.E("download directory not set")
	}
	return nil
}

func (o *Opts) samName() string {
	if o.CompressSAM {
		return SAMFile + ".sz"
	}
	return SAMFile
}

func (o *Opts) alignerArgs() []string {
	args := make([]string, 0, len(o.AlignerArgs)+len(o.StdinArgs))
	args = append(args, o.AlignerArgs...)
	return append(args, o.StdinArgs...)
}
