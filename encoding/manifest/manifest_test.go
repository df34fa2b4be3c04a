package manifest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := "# comment\n" +
		"G1\tS1\tftp://host/a/S1_1.fastq.gz\n" +
		"G1\tS2\tftp://host/a/S2_1.fastq.gz\tftp://host/a/S2_2.fastq.gz\n" +
		"G2\tS3\t/local/S3.fastq\r\n" +
		"\n" +
		"G9\tIGNORED\tftp://host/after-blank\n"
	jobs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Job{
		{Group: "G1", Name: "S1", URL: "ftp://host/a/S1_1.fastq.gz"},
		{Group: "G1", Name: "S2", URL: "ftp://host/a/S2_1.fastq.gz", URL2: "ftp://host/a/S2_2.fastq.gz"},
		{Group: "G2", Name: "S3", URL: "/local/S3.fastq"},
	}, jobs)
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		name, in, want string
	}{
		{"short", "G1\tS1\turl\nG1\tS2\n", "line 2"},
		{"empty field", "G1\t\turl\n", "line 1"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(test.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.want)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	jobs, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestWriteRoundTrip(t *testing.T) {
	jobs := []Job{
		{Group: "G", Name: "A", URL: "http://x/A.fq"},
		{Group: "G", Name: "B", URL: "http://x/B_1.fq", URL2: "http://x/B_2.fq"},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, jobs))
	assert.Equal(t, "G\tA\thttp://x/A.fq\nG\tB\thttp://x/B_1.fq\thttp://x/B_2.fq\n", buf.String())
	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, jobs, got)
}
