package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tdh8316/rbxsniper/internal/config"
)

var ErrHelp = errors.New("help requested")

type Command string

const (
	CommandRun   Command = "run"
	CommandServe Command = "serve"
)

type Options struct {
	Command Command

	Run config.RunConfig

	NoColor bool
	Verbose bool
	Print   bool

	Endpoint    string
	Serve       string
	Listen      string
	Upstream    string
	Policy      string
	SocksProxy  string
	Timeout     time.Duration
	MetricsAddr string
	Output      string
	LogLevel    string
	LogFormat   string
}

const usageText = `
usage:
  sniper [run] [flags]
  sniper serve [flags]

commands:
  run                   generate and check usernames until the target is found (default)
  serve                 run the validation proxy

run flags:
  -n, --names N         valid usernames to find, 1-1000 (default: 10)
  -l, --length N        username length, 3-20 (default: 5)
  -m, --method NAME     random, pronounceable, letters_only, letters_underline,
                        numbers_underline, letters_numbers_underline, numbers_letters
  -c, --concurrency N   concurrent workers, 1-100 (default: 5)
  --birthday DATE       birthday sent with every check, YYYY-MM-DD
  --endpoint URL        validation proxy endpoint
  --serve ADDR          also start the validation proxy on ADDR and check through it
  -o, --output PATH     export file for valid usernames (default: valid_usernames.txt)
  --print               print the export to stdout when done
  --metrics ADDR        expose Prometheus metrics on ADDR

serve flags:
  --listen ADDR         listen address (default: 127.0.0.1:8080)
  --upstream URL        upstream validation service
  --policy REGEX        username policy checked before forwarding ("" disables)

common flags:
  -h, --help            show this help message and exit
  --no-color            disable colored stdout output
  -v, --verbose         also show taken usernames
  -t, --tor             route requests through tor (socks5://127.0.0.1:9050)
  --socks URL           route requests through a SOCKS5 proxy
  --timeout SECONDS     HTTP request timeout (default: 15)
  --log-level LEVEL     diagnostics level: debug, info, warn, error (default: warn)
  --log-format FORMAT   diagnostics format: text, json (default: text)

Every default can be set with a SNIPER_* environment variable or a .env file.
`

const torProxyURL = "socks5://127.0.0.1:9050"

func Parse(args []string, defaults config.Defaults, defaultPolicy string, stdout, stderr io.Writer) (Options, error) {
	opts := Options{Command: CommandRun}
	if len(args) > 0 {
		switch args[0] {
		case string(CommandRun):
			args = args[1:]
		case string(CommandServe):
			opts.Command = CommandServe
			args = args[1:]
		}
	}

	var (
		help     bool
		method   string
		timeoutS int
		withTor  bool
	)

	fs := flag.NewFlagSet("sniper", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Usage = func() {
		_, _ = fmt.Fprint(stdout, usageText)
	}

	fs.BoolVar(&help, "h", false, "show help")
	fs.BoolVar(&help, "help", false, "show help")

	// Run configuration
	fs.IntVar(&opts.Run.Names, "n", defaults.Names, "valid usernames to find")
	fs.IntVar(&opts.Run.Names, "names", defaults.Names, "valid usernames to find")
	fs.IntVar(&opts.Run.Length, "l", defaults.Length, "username length")
	fs.IntVar(&opts.Run.Length, "length", defaults.Length, "username length")
	fs.StringVar(&method, "m", defaults.Method, "generation method")
	fs.StringVar(&method, "method", defaults.Method, "generation method")
	fs.IntVar(&opts.Run.Concurrency, "c", defaults.Concurrency, "concurrent workers")
	fs.IntVar(&opts.Run.Concurrency, "concurrency", defaults.Concurrency, "concurrent workers")
	fs.StringVar(&opts.Run.Birthday, "birthday", defaults.Birthday, "birthday sent with every check")

	// Behavior flags
	fs.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	fs.BoolVar(&opts.Verbose, "v", false, "verbose output")
	fs.BoolVar(&opts.Verbose, "verbose", false, "verbose output")
	fs.BoolVar(&opts.Print, "print", false, "print export to stdout")
	fs.BoolVar(&withTor, "t", false, "use tor proxy")
	fs.BoolVar(&withTor, "tor", false, "use tor proxy")

	// Options
	fs.StringVar(&opts.Endpoint, "endpoint", defaults.Endpoint, "validation proxy endpoint")
	fs.StringVar(&opts.Serve, "serve", "", "start the validation proxy in-process")
	fs.StringVar(&opts.Listen, "listen", defaults.Listen, "proxy listen address")
	fs.StringVar(&opts.Upstream, "upstream", defaults.Upstream, "upstream validation service")
	fs.StringVar(&opts.Policy, "policy", defaultPolicy, "username policy")
	fs.StringVar(&opts.SocksProxy, "socks", defaults.SocksProxy, "SOCKS5 proxy url")
	fs.IntVar(&timeoutS, "timeout", int(defaults.Timeout/time.Second), "request timeout in seconds")
	fs.StringVar(&opts.MetricsAddr, "metrics", "", "metrics listen address")
	fs.StringVar(&opts.Output, "o", defaults.Output, "export file")
	fs.StringVar(&opts.Output, "output", defaults.Output, "export file")
	fs.StringVar(&opts.LogLevel, "log-level", defaults.LogLevel, "diagnostics level")
	fs.StringVar(&opts.LogFormat, "log-format", defaults.LogFormat, "diagnostics format")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if help {
		fs.Usage()
		return Options{}, ErrHelp
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if timeoutS <= 0 {
		timeoutS = 15
	}
	opts.Timeout = time.Duration(timeoutS) * time.Second

	if withTor && opts.SocksProxy == "" {
		opts.SocksProxy = torProxyURL
	}

	if opts.Command == CommandRun {
		m, err := config.ParseMethod(method)
		if err != nil {
			return Options{}, err
		}
		opts.Run.Method = m
		if err := opts.Run.Validate(); err != nil {
			return Options{}, err
		}
	}

	return opts, nil
}
