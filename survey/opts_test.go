package survey

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)

	path := filepath.Join(dir, "survey.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
out-dir = "/data/out"
workers = 3
aligner = "bowtie2"
aligner-args = ["-x", "hg19", "-p", "7"]
download-first = false
fail-fast = false

[retry]
attempts = 2
delay = "250ms"
`), 0666))

	opts := DefaultOpts
	require.NoError(t, LoadConfig(path, &opts))
	assert.Equal(t, "/data/out", opts.OutDir)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, "bowtie2", opts.Aligner)
	assert.Equal(t, []string{"-x", "hg19", "-p", "7"}, opts.AlignerArgs)
	assert.False(t, opts.DownloadFirst)
	assert.False(t, opts.FailFast)
	assert.Equal(t, RetryPolicy{Attempts: 2, Delay: 250 * time.Millisecond}, opts.Retry)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultOpts.StdinArgs, opts.StdinArgs)
	assert.Equal(t, DefaultOpts.FlushInterval, opts.FlushInterval)
	assert.True(t, opts.KeepDownloads)
	assert.Equal(t, []string{"-x", "hg19", "-p", "7", "-U", "-", "--mm"}, opts.alignerArgs())
}

func TestLoadConfigMissing(t *testing.T) {
	opts := DefaultOpts
	require.NoError(t, LoadConfig("/nonexistent/survey.toml", &opts))
	assert.Equal(t, DefaultOpts.OutDir, opts.OutDir)
	assert.Error(t, LoadConfig("", &opts))
}

func TestLoadConfigUnknownKey(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, dir)

	path := filepath.Join(dir, "survey.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("wokers = 3\n"), 0666))
	opts := DefaultOpts
	err := LoadConfig(path, &opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wokers")
}

func TestValidate(t *testing.T) {
	valid := DefaultOpts
	valid.Aligner = "bowtie2"
	require.NoError(t, valid.Validate())

	for _, test := range []struct {
		name   string
		modify func(*Opts)
	}{
		{"no outdir", func(o *Opts) { o.OutDir = "" }},
		{"no aligner", func(o *Opts) { o.Aligner = "" }},
		{"zero workers", func(o *Opts) { o.Workers = 0 }},
		{"zero flush interval", func(o *Opts) { o.FlushInterval = 0 }},
		{"zero attempts", func(o *Opts) { o.Retry.Attempts = 0 }},
		{"negative delay", func(o *Opts) { o.Retry.Delay = -time.Second }},
		{"no download dir", func(o *Opts) { o.DownloadDir = "" }},
	} {
		opts := valid
		test.modify(&opts)
		assert.Error(t, opts.Validate(), test.name)
	}
	opts := valid
	opts.DownloadFirst = false
	opts.DownloadDir = ""
	assert.NoError(t, opts.Validate())
}
