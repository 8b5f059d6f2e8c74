package cli

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rbxsniper/internal/config"
)

func defaults() config.Defaults {
	return config.Defaults{
		Names:       10,
		Length:      5,
		Method:      "random",
		Concurrency: 5,
		Birthday:    "1999-04-20",
		Endpoint:    "http://127.0.0.1:8080/api/validate",
		Listen:      "127.0.0.1:8080",
		Timeout:     15 * time.Second,
		Output:      "valid_usernames.txt",
		LogLevel:    "warn",
	}
}

func parse(args ...string) (Options, error) {
	return Parse(args, defaults(), "policy", io.Discard, io.Discard)
}

func TestParseDefaults(t *testing.T) {
	opts, err := parse()
	require.NoError(t, err)
	assert.Equal(t, CommandRun, opts.Command)
	assert.Equal(t, config.RunConfig{Names: 10, Length: 5, Method: config.MethodRandom, Concurrency: 5, Birthday: "1999-04-20"}, opts.Run)
	assert.Equal(t, 15*time.Second, opts.Timeout)
	assert.Equal(t, "policy", opts.Policy)
}

func TestParseRunFlags(t *testing.T) {
	opts, err := parse("run", "-n", "3", "--length", "8", "-m", "pronounceable", "-c", "20", "--birthday", "2001-01-01", "-t", "--timeout", "0")
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Run.Names)
	assert.Equal(t, 8, opts.Run.Length)
	assert.Equal(t, config.MethodPronounceable, opts.Run.Method)
	assert.Equal(t, 20, opts.Run.Concurrency)
	assert.Equal(t, "2001-01-01", opts.Run.Birthday)
	assert.Equal(t, torProxyURL, opts.SocksProxy)
	assert.Equal(t, 15*time.Second, opts.Timeout)
}

func TestParseServe(t *testing.T) {
	opts, err := parse("serve", "--listen", ":9000", "--policy", "")
	require.NoError(t, err)
	assert.Equal(t, CommandServe, opts.Command)
	assert.Equal(t, ":9000", opts.Listen)
	assert.Empty(t, opts.Policy)
}

func TestParseRejectsOutOfRange(t *testing.T) {
	for _, args := range [][]string{
		{"-n", "0"},
		{"-n", "1001"},
		{"-l", "2"},
		{"-c", "101"},
		{"-m", "cvc"},
		{"--birthday", "yesterday"},
	} {
		_, err := parse(args...)
		assert.Error(t, err, args)
	}
}

func TestParseHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := Parse([]string{"-h"}, defaults(), "", &out, io.Discard)
	assert.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, out.String(), "usage:")
}

func TestParseExtraArgs(t *testing.T) {
	_, err := parse("run", "stray")
	assert.Error(t, err)
}
