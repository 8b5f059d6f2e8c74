package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tdh8316/rbxsniper/internal/checker"
	"github.com/tdh8316/rbxsniper/internal/cli"
	"github.com/tdh8316/rbxsniper/internal/config"
	"github.com/tdh8316/rbxsniper/internal/httpx"
	"github.com/tdh8316/rbxsniper/internal/logger"
	"github.com/tdh8316/rbxsniper/internal/metrics"
	"github.com/tdh8316/rbxsniper/internal/output"
	"github.com/tdh8316/rbxsniper/internal/proxy"
	"github.com/tdh8316/rbxsniper/internal/sniper"
)

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "rbxsniper - Find available usernames.")

	defaults, err := config.LoadDefaults(".env")
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	opts, err := cli.Parse(args, defaults, proxy.DefaultUsernamePolicy, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	color.NoColor = opts.NoColor
	log := logger.New(opts.LogLevel, opts.LogFormat, stderr)

	maxConns := opts.Run.Concurrency
	if opts.Command == cli.CommandServe {
		maxConns = 0
	}
	upstream, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:         opts.Timeout,
		SocksProxyURL:   opts.SocksProxy,
		MaxConnsPerHost: maxConns,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
		return 1
	}

	rec := metrics.NewRecorder()
	printer := output.NewPrinter(stdout, opts.NoColor, opts.Verbose)

	if opts.Command == cli.CommandServe {
		return runServe(ctx, opts, upstream, rec, printer, log, stderr)
	}
	return runSniper(ctx, opts, upstream, rec, printer, log, stderr)
}

func runServe(ctx context.Context, opts cli.Options, client *http.Client, rec *metrics.Recorder, printer *output.Printer, log *logrus.Logger, stderr io.Writer) int {
	handler, err := newProxyHandler(opts, client, rec, log)
	if err != nil {
		fmt.Fprintf(stderr, "proxy error: %v\n", err)
		return 1
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		fmt.Fprintf(stderr, "listen %s: %v\n", opts.Listen, err)
		return 1
	}
	printer.Notice(true, "Validation proxy listening on http://%s/api/validate", ln.Addr())

	if err := serveHTTP(ctx, ln, handler, log); err != nil {
		fmt.Fprintf(stderr, "proxy error: %v\n", err)
		return 1
	}
	return 0
}

func runSniper(ctx context.Context, opts cli.Options, upstream *http.Client, rec *metrics.Recorder, printer *output.Printer, log *logrus.Logger, stderr io.Writer) int {
	srvCtx, stopServers := context.WithCancel(context.Background())
	defer stopServers()
	g, gctx := errgroup.WithContext(srvCtx)

	endpoint := opts.Endpoint
	checkClient := upstream

	if opts.Serve != "" {
		handler, err := newProxyHandler(opts, upstream, rec, log)
		if err != nil {
			fmt.Fprintf(stderr, "proxy error: %v\n", err)
			return 1
		}
		ln, err := net.Listen("tcp", opts.Serve)
		if err != nil {
			fmt.Fprintf(stderr, "listen %s: %v\n", opts.Serve, err)
			return 1
		}
		endpoint = "http://" + ln.Addr().String() + "/api/validate"
		g.Go(func() error { return serveHTTP(gctx, ln, handler, log) })

		// The in-process proxy is local; only its upstream leg goes through SOCKS.
		checkClient, err = httpx.NewClient(httpx.ClientConfig{
			Timeout:         opts.Timeout,
			MaxConnsPerHost: opts.Run.Concurrency,
		})
		if err != nil {
			fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
			return 1
		}
	}

	if opts.MetricsAddr != "" {
		ln, err := net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			fmt.Fprintf(stderr, "listen %s: %v\n", opts.MetricsAddr, err)
			return 1
		}
		printer.Notice(true, "Metrics on http://%s/metrics", ln.Addr())
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		g.Go(func() error { return serveHTTP(gctx, ln, mux, log) })
	}

	sessOpts := sniper.DefaultOptions()
	sessOpts.Observer = printer.Observe
	sessOpts.Recorder = rec
	sessOpts.Logger = log

	session := sniper.NewSession(checker.NewHTTPChecker(checkClient, endpoint, opts.Run.Birthday), sessOpts)

	// Interrupts go through Stop so partial results are kept.
	if err := session.Start(context.WithoutCancel(ctx), opts.Run); err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return 2
	}

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Stop()
	case <-gctx.Done():
		session.Stop()
	}
	snap := session.Wait()

	stopServers()
	serverErr := g.Wait()

	printer.Summary(snap)
	if code := export(opts, snap, printer, stderr); code != 0 {
		return code
	}

	if serverErr != nil {
		fmt.Fprintf(stderr, "server error: %v\n", serverErr)
		return 1
	}
	return 0
}

func export(opts cli.Options, snap sniper.Snapshot, printer *output.Printer, stderr io.Writer) int {
	if opts.Output != "" {
		n, err := output.WriteExport(opts.Output, snap.Results)
		if err != nil {
			fmt.Fprintf(stderr, "failed to write %q: %v\n", opts.Output, err)
			return 1
		}
		printer.Notice(true, "Saved %d username(s) to %s", n, opts.Output)
	}

	if opts.Print {
		names := output.ValidUsernames(snap.Results)
		if len(names) == 0 {
			printer.Notice(false, "Nothing to print")
			return 0
		}
		printer.Notice(true, "Copied %d usernames", len(names))
		printer.Raw(output.ExportText(snap.Results))
	}
	return 0
}

func newProxyHandler(opts cli.Options, client *http.Client, rec *metrics.Recorder, log *logrus.Logger) (http.Handler, error) {
	srv, err := proxy.New(client, proxy.Config{
		UpstreamURL:    opts.Upstream,
		UsernamePolicy: opts.Policy,
		Timeout:        opts.Timeout,
	}, log, proxy.WithObserver(rec), proxy.WithMetricsHandler(rec.Handler()))
	if err != nil {
		return nil, err
	}
	return srv.Routes(), nil
}

// serveHTTP serves until ctx is done, then shuts down gracefully.
func serveHTTP(ctx context.Context, ln net.Listener, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.WithField("addr", ln.Addr().String()).Info("http server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
