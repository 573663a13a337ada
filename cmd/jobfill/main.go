package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/api"
	"github.com/jobfill/jobfill/internal/browser"
	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/repository"
	"github.com/jobfill/jobfill/internal/services/autofill"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/internal/storage"
	"github.com/jobfill/jobfill/internal/transport"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load()

	// Flags
	targetURL := flag.String("url", "", "Application form to fill")
	embedded := flag.Bool("embedded", false, "Run the background service in-process instead of calling BACKGROUND_URL")
	serveAddr := flag.String("serve", "", "With -embedded, also serve the action API on this address")
	wait := flag.Duration("wait", 30*time.Minute, "How long to wait for the form to be submitted")
	headless := flag.Bool("headless", false, "Run browser in headless mode")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	if *targetURL == "" {
		red.Println("❌ -url is required")
		flag.Usage()
		return 2
	}

	cfg, _ := config.LoadWithDefaults()
	cfg.Browser.Headless = cfg.Browser.Headless || *headless

	// Setup logger
	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"/dev/null"}
		logger, _ = zcfg.Build()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.App.Name, prometheus.NewRegistry())

	// Background: in-process or remote
	var (
		backend autofill.Backend
		svc     *background.Service
	)
	if *embedded {
		store, closeStore, err := repository.Open(cfg, metrics, logger)
		if err != nil {
			red.Printf("❌ Failed to open store: %v\n", err)
			return 1
		}
		defer closeStore()

		source, err := storage.NewProfileSource(cfg.Storage)
		if err != nil {
			red.Printf("❌ Failed to configure profile source: %v\n", err)
			return 1
		}
		svc = background.NewService(store, logger)
		if err := svc.Install(ctx, source); err != nil {
			red.Printf("❌ Install failed: %v\n", err)
			return 1
		}
		backend = svc
		dim.Printf("   background: in-process (%s store)\n", cfg.Store.Backend)
	} else {
		client, err := transport.NewClient(transport.ClientConfigFrom(cfg.Transport, cfg.Security.APIKey), metrics, logger)
		if err != nil {
			red.Printf("❌ Failed to create client: %v\n", err)
			return 1
		}
		backend = client
		dim.Printf("   background: %s\n", cfg.Transport.BaseURL)
	}

	// Browser
	session, err := browser.Launch(cfg.Browser, logger)
	if err != nil {
		red.Printf("❌ Failed to launch browser: %v\n", err)
		return 1
	}
	defer session.Close()

	cyan.Printf("🎯 Opening %s\n", *targetURL)
	page, err := session.Open(ctx, *targetURL)
	if err != nil {
		red.Printf("❌ %v\n", err)
		return 1
	}

	agent := autofill.New(page.Document(), backend, metrics, logger)

	if svc != nil {
		detach := svc.AttachAgent(agent)
		defer detach()

		if *serveAddr != "" {
			server := serve(*serveAddr, svc, metrics, cfg, logger)
			defer server.Close()
		}
	}

	status := agent.Status(ctx)
	if !status.Supported {
		yellow.Printf("⚠ %s is not a recognised applicant tracking system; generic patterns only\n", page.URL())
	}
	fmt.Printf("   site: %s, %d fields found\n", status.Site, status.FieldsFound)

	// Fill
	resp := agent.Fill(ctx)
	printResults(resp)
	if !resp.Success {
		return 1
	}

	// Wait for the user to review and submit
	outcome := waitForSubmit(ctx, page, *wait)
	switch outcome {
	case dom.EventSubmit, dom.EventUnload:
		green.Println("   ✓ Submission seen, corrections learned")
	default:
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		saved := agent.SaveCorrections(saveCtx)
		cancel()
		if saved.Saved > 0 {
			green.Printf("   ✓ %d corrections saved\n", saved.Saved)
		} else {
			dim.Println("   no corrections to save")
		}
	}
	return 0
}

// waitForSubmit spins until the page reports submit or unload, the wait
// elapses or the user interrupts. It returns the event seen, if any.
func waitForSubmit(ctx context.Context, page *browser.Page, wait time.Duration) dom.EventType {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("   Review the form and submit it..."),
		progressbar.OptionSpinnerType(14),
	)
	defer bar.Finish()

	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case ev := <-page.Events():
			return ev
		case <-ctx.Done():
			return ""
		case <-timeout.C:
			return ""
		case <-tick.C:
			bar.Add(1)
		}
	}
}

func printResults(resp domain.FillResponse) {
	fmt.Println()
	if !resp.Success {
		red.Printf("❌ %s\n", resp.Error)
		return
	}

	r := resp.Results
	bold.Printf("📝 Filled form on %s\n", resp.Site)
	green.Printf("   ✓ %d filled\n", r.Filled)
	if r.Uncertain > 0 {
		yellow.Printf("   ⚠ %d uncertain, please check the highlighted fields\n", r.Uncertain)
	}
	if r.Skipped > 0 {
		dim.Printf("   • %d skipped\n", r.Skipped)
	}
	if r.Failed > 0 {
		red.Printf("   ✗ %d failed\n", r.Failed)
	}
	fmt.Println()
}

// serve exposes the embedded background's action API, so fillForm can be
// triggered from outside
func serve(addr string, svc *background.Service, metrics *observability.Metrics, cfg *config.Config, logger *zap.Logger) *http.Server {
	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Metrics:        metrics,
		Logger:         logger,
		APIKey:         cfg.Security.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("action API stopped", zap.Error(err))
		}
	}()
	dim.Printf("   action API on %s\n", addr)
	return server
}
