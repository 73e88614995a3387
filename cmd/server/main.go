package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tgadapter/internal/dump"
	"tgadapter/internal/extract"
	"tgadapter/internal/httpapi"
	"tgadapter/internal/teachers"
	"tgadapter/internal/telemetry"
	"tgadapter/internal/transport"
)

var (
	listenAddr    string
	upstreamURL   string
	requestTimeout time.Duration
	maxRetries    int
	backoffFactor time.Duration
	weekInitial   float64
	homeworkInitial float64
	forceConcurrency bool
	verbose       bool
	dumpDir       string
)

var rootCmd = &cobra.Command{
	Use:   "tgadapter-server",
	Short: "tgadapter-server adapts the upstream timetable system to a stable JSON API.",
	Run:   runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&listenAddr, "listen", "0.0.0.0:8090", "Address to listen on.")
	flags.StringVar(&upstreamURL, "upstream", "", "Upstream base URL (required).")
	flags.DurationVar(&requestTimeout, "request-timeout", 30*time.Second, "Per-request upstream timeout.")
	flags.IntVar(&maxRetries, "max-retries", 3, "Max retry attempts for a single upstream call.")
	flags.DurationVar(&backoffFactor, "backoff-factor", 500*time.Millisecond, "Base retry backoff duration.")
	flags.Float64Var(&weekInitial, "week-fetch-initial", 5, "Initial week-fetch concurrency ceiling.")
	flags.Float64Var(&homeworkInitial, "homework-fetch-initial", 20, "Initial homework-fetch concurrency ceiling.")
	flags.BoolVar(&forceConcurrency, "force-concurrency", false, "Disable dynamic concurrency adjustment, using fixed ceilings.")
	flags.BoolVar(&verbose, "v", false, "Enable verbose logging and request/response dumping.")
	flags.StringVar(&dumpDir, "dump-dir", ".dev/dumps", "Directory to dump raw upstream requests/responses to when --v is set.")
	rootCmd.MarkFlagRequired("upstream")
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx
}

func runServer(cmd *cobra.Command, args []string) {
	telemetry.InitSlog(verbose)
	ctx := signalContext()

	cfg := extract.DefaultConfig(upstreamURL)
	cfg.RequestTimeout = requestTimeout
	cfg.MaxRetries = maxRetries
	cfg.BackoffFactor = backoffFactor
	cfg.WeekFetchInitial = weekInitial
	cfg.HomeworkFetchInitial = homeworkInitial
	if verbose {
		var dw transport.DumpWriter
		writer, err := dump.NewFilesystemWriter(dumpDir)
		if err != nil {
			slog.Error("failed to init dump writer, continuing without it", "error", err)
		} else {
			dw = writer
		}
		cfg.Dump = dw
	}

	engine := extract.NewEngine(cfg, teachers.New())
	handler := httpapi.NewHandler(engine, forceConcurrency)

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: httpapi.AccessLog(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", listenAddr, "upstream", upstreamURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
