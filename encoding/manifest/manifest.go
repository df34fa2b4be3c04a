// Package manifest reads and writes the job lists that drive a read survey.
//
// A manifest is a tab-separated text file with one job per line:
//
//   group <TAB> name <TAB> url [<TAB> url2]
//
// The optional second URL names the mate file of a paired-end run. It is
// parsed and carried but not otherwise used. Reading stops at the first empty
// line; lines starting with '#' are comments.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// Job is one unit of work: a read file and the output directory it maps to.
type Job struct {
	Group string
	Name  string
	URL   string
	// URL2 is the mate file of a paired-end run, or empty.
	URL2 string
}

func (j Job) String() string { return j.Group + "/" + j.Name + " (" + j.URL + ")" }

// Parse reads jobs from r.
func Parse(r io.Reader) ([]Job, error) {
	var (
		jobs []Job
		sc   = bufio.NewScanner(r)
		line int
	)
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), " \t\r")
		if text == "" {
			break
		}
		if strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 3 {
			return nil, errors.E(fmt.Sprintf("manifest line %d: expected at least 3 columns, found %d", line, len(cols)))
		}
		j := Job{Group: cols[0], Name: cols[1], URL: cols[2]}
		if len(cols) > 3 {
			j.URL2 = cols[3]
		}
		if j.Group == "" || j.Name == "" || j.URL == "" {
			return nil, errors.E(fmt.Sprintf("manifest line %d: empty group, name or url", line))
		}
		jobs = append(jobs, j)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, "read manifest")
	}
	return jobs, nil
}

// Write writes jobs to w in the format read by Parse.
func Write(w io.Writer, jobs []Job) error {
	bw := bufio.NewWriter(w)
	for _, j := range jobs {
		cols := []string{j.Group, j.Name, j.URL}
		if j.URL2 != "" {
			cols = append(cols, j.URL2)
		}
		if _, err := bw.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
