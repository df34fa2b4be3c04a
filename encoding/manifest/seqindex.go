package manifest

import (
	"fmt"
	"io"
	"path"
	"reflect"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// IndexRow is one row of a 1000 Genomes sequence.index file.
type IndexRow struct {
	FastqFile          string `tsv:"FASTQ_FILE"`
	MD5                string `tsv:"MD5"`
	RunID              string `tsv:"RUN_ID"`
	StudyID            string `tsv:"STUDY_ID"`
	StudyName          string `tsv:"STUDY_NAME"`
	CenterName         string `tsv:"CENTER_NAME"`
	SubmissionID       string `tsv:"SUBMISSION_ID"`
	SubmissionDate     string `tsv:"SUBMISSION_DATE"`
	SampleID           string `tsv:"SAMPLE_ID"`
	SampleName         string `tsv:"SAMPLE_NAME"`
	Population         string `tsv:"POPULATION"`
	ExperimentID       string `tsv:"EXPERIMENT_ID"`
	InstrumentPlatform string `tsv:"INSTRUMENT_PLATFORM"`
	InstrumentModel    string `tsv:"INSTRUMENT_MODEL"`
	LibraryName        string `tsv:"LIBRARY_NAME"`
	RunName            string `tsv:"RUN_NAME"`
	RunBlockName       string `tsv:"RUN_BLOCK_NAME"`
	InsertSize         string `tsv:"INSERT_SIZE"`
	LibraryLayout      string `tsv:"LIBRARY_LAYOUT"`
	PairedFastq        string `tsv:"PAIRED_FASTQ"`
	Withdrawn          string `tsv:"WITHDRAWN"`
	WithdrawnDate      string `tsv:"WITHDRAWN_DATE"`
	Comment            string `tsv:"COMMENT"`
	ReadCount          string `tsv:"READ_COUNT"`
	BaseCount          string `tsv:"BASE_COUNT"`
	AnalysisGroup      string `tsv:"ANALYSIS_GROUP"`
}

// indexColumns maps a sequence.index column name to its IndexRow field.
var indexColumns = func() map[string]int {
	m := make(map[string]int)
	t := reflect.TypeOf(IndexRow{})
	for i := 0; i < t.NumField(); i++ {
		m[t.Field(i).Tag.Get("tsv")] = i
	}
	return m
}()

// Column returns the value of the named column, and whether the column
// exists.
func (r *IndexRow) Column(name string) (string, bool) {
	i, ok := indexColumns[name]
	if !ok {
		return "", false
	}
	return reflect.ValueOf(r).Elem().Field(i).String(), true
}

// Filter selects sequence.index rows whose Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// ParseFilters parses a comma-separated list of COLUMN=VALUE terms, e.g.
// "SAMPLE_NAME=NA12878,INSTRUMENT_PLATFORM=ILLUMINA". Values may contain
// spaces. An empty string yields no filters.
func ParseFilters(s string) ([]Filter, error) {
	if s == "" {
		return nil, nil
	}
	var filters []Filter
	for _, term := range strings.Split(s, ",") {
		kv := strings.Split(term, "=")
		if len(kv) != 2 {
			return nil, errors.E(fmt.Sprintf("filter %q: expected COLUMN=VALUE", term))
		}
		if _, ok := indexColumns[kv[0]]; !ok {
			return nil, errors.E(fmt.Sprintf("filter %q: unknown column %s", term, kv[0]))
		}
		filters = append(filters, Filter{Column: kv[0], Value: kv[1]})
	}
	return filters, nil
}

func (r *IndexRow) matches(filters []Filter) bool {
	for _, f := range filters {
		if v, _ := r.Column(f.Column); v != f.Value {
			return false
		}
	}
	return true
}

// JobName derives a job name from a read file URL: the last path element up
// to its first '.'.
func JobName(url string) string {
	name := path.Base(url)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// FromSequenceIndex reads a sequence.index file with a header row from r and
// returns one job per row that passes every filter. Each job's URL is prefix
// followed by the row's FASTQ_FILE.
func FromSequenceIndex(r io.Reader, group, prefix string, filters []Filter) ([]Job, error) {
	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	var (
		jobs  []Job
		nrows int
	)
	for {
		var row IndexRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, "read sequence index")
		}
		nrows++
		if !row.matches(filters) {
			continue
		}
		url := prefix + row.FastqFile
		jobs = append(jobs, Job{Group: group, Name: JobName(url), URL: url})
	}
	log.Debug.Printf("sequence index: %d of %d rows passed %d filters", len(jobs), nrows, len(filters))
	return jobs, nil
}
