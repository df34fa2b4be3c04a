package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/readsurvey/encoding/manifest"
	"github.com/grailbio/readsurvey/survey"
	"v.io/x/lib/cmdline"
)

// runFlags holds the settings of the run command as parsed from its flags.
type runFlags struct {
	opts      survey.Opts
	config    string
	stdinArgs string
}

func newRunFlags(fs *flag.FlagSet) *runFlags {
	f := &runFlags{opts: survey.DefaultOpts}
	fs.StringVar(&f.config, "config", "", "TOML file with default settings")
	fs.StringVar(&f.stdinArgs, "stdin-args", strings.Join(survey.DefaultOpts.StdinArgs, " "),
		"Space-separated arguments appended to the aligner command line to make it read from stdin")
	opts := &f.opts
	fs.StringVar(&opts.OutDir, "out", opts.OutDir, "Output root directory")
	fs.StringVar(&opts.DownloadDir, "download-dir", opts.DownloadDir, "Directory for downloaded read files")
	fs.IntVar(&opts.Workers, "workers", opts.Workers, "Number of read files processed concurrently")
	fs.BoolVar(&opts.DownloadFirst, "download-first", opts.DownloadFirst, "Download each read file completely before aligning it")
	fs.BoolVar(&opts.KeepDownloads, "keep-downloads", opts.KeepDownloads, "Keep downloaded read files after aligning them")
	fs.BoolVar(&opts.SkipExisting, "skip-existing", opts.SkipExisting, "Skip inputs whose SAM output already exists")
	fs.BoolVar(&opts.FailFast, "fail-fast", opts.FailFast, "Abort the run on the first failed input")
	fs.BoolVar(&opts.CompressSAM, "compress-sam", opts.CompressSAM, "Write per-input SAM output snappy-compressed")
	fs.IntVar(&opts.FlushInterval, "flush-interval", opts.FlushInterval, "Records between periodic statistics flushes")
	fs.IntVar(&opts.Retry.Attempts, "retries", opts.Retry.Attempts, "Maximum download attempts per read file")
	fs.DurationVar(&opts.Retry.Delay, "retry-delay", opts.Retry.Delay, "Pause between download attempts")
	return f
}

// resolve returns the effective settings after fs has been parsed. Settings
// from the -config file sit between the defaults and the flags given on the
// command line.
func (f *runFlags) resolve(fs *flag.FlagSet) (survey.Opts, error) {
	if f.config != "" {
		set := map[string]string{}
		fs.Visit(func(fl *flag.Flag) { set[fl.Name] = fl.Value.String() })
		if err := survey.LoadConfig(f.config, &f.opts); err != nil {
			return survey.Opts{}, err
		}
		for name, value := range set {
			if err := fs.Set(name, value); err != nil {
				return survey.Opts{}, err
			}
		}
		if _, ok := set["stdin-args"]; !ok && f.opts.StdinArgs != nil {
			f.stdinArgs = strings.Join(f.opts.StdinArgs, " ")
		}
	}
	opts := f.opts
	opts.StdinArgs = strings.Fields(f.stdinArgs)
	return opts, nil
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "run",
		Short: "Align the reads named in a manifest and stratify the results",
		Long: `
Run reads a manifest of "group name url [url2]" lines and, for each line,
fetches the read file, pipes it through the aligner and aggregates the SAM
output. The aligner is invoked as

    aligner aligner-args... stdin-args...

and must read reads from stdin and write SAM to stdout.

Settings may also come from a TOML file given by -config; keys are the flag
names, with the retry settings in a [retry] table ("attempts", "delay").
Flags given on the command line override the file.`,
		ArgsName: "manifest aligner [aligner-args...]",
	}
	flags := newRunFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return fmt.Errorf("run takes a manifest and an aligner command, but got %v", argv)
		}
		opts, err := flags.resolve(&cmd.Flags)
		if err != nil {
			return err
		}
		opts.Aligner = argv[1]
		opts.AlignerArgs = argv[2:]
		res, err := survey.RunManifest(vcontext.Background(), opts, argv[0])
		if err != nil {
			return err
		}
		for _, f := range res.Failed {
			log.Error.Printf("failed: %v", f)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d of %d inputs failed", len(res.Failed), len(res.Failed)+res.Jobs+res.Skipped)
		}
		return nil
	})
	return cmd
}

func newCmdManifest() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "manifest",
		Short: "Generate a manifest from a 1000 Genomes sequence.index file",
		Long: `
Manifest selects the rows of a sequence.index file that match every filter
and prints one manifest line per row. The filter is a comma-separated list of
COLUMN=VALUE terms, for example
"SAMPLE_NAME=NA12878,INSTRUMENT_PLATFORM=ILLUMINA". Each row's URL is prefix
followed by its FASTQ_FILE column; its name is the file's base name up to the
first '.'.`,
		ArgsName: "sequence.index group prefix [filters]",
	}
	out := cmd.Flags.String("o", "", "Output path; default stdout")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 3 || len(argv) > 4 {
			return fmt.Errorf("manifest takes sequence.index group prefix [filters], but got %v", argv)
		}
		var filterStr string
		if len(argv) == 4 {
			filterStr = argv[3]
		}
		filters, err := manifest.ParseFilters(filterStr)
		if err != nil {
			return err
		}
		log.Printf("parsed %d filters from %q", len(filters), filterStr)
		ctx := vcontext.Background()
		in, err := file.Open(ctx, argv[0])
		if err != nil {
			return err
		}
		jobs, err := manifest.FromSequenceIndex(in.Reader(ctx), argv[1], argv[2], filters)
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return err
		}
		if *out == "" {
			return manifest.Write(env.Stdout, jobs)
		}
		f, err := file.Create(ctx, *out)
		if err != nil {
			return err
		}
		if err := manifest.Write(f.Writer(ctx), jobs); err != nil {
			_ = f.Close(ctx)
			return err
		}
		return f.Close(ctx)
	})
	return cmd
}

func newCmdStats() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "stats",
		Short:    "Recompute statistics from a saved SAM file",
		ArgsName: "samfile outdir",
	}
	flushInterval := cmd.Flags.Int("flush-interval", survey.DefaultOpts.FlushInterval, "Records between periodic statistics flushes")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("stats takes samfile outdir, but got %v", argv)
		}
		summary, err := survey.StatsFromSAM(vcontext.Background(), argv[0], argv[1], *flushInterval)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, summary)
		return nil
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "bio-readsurvey",
		Short:    "Align sequencing read files and stratify read quality by SAM flag and length",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdManifest(),
			newCmdStats(),
		},
	})
}
