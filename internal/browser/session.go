// Package browser drives a real browser tab with playwright and exposes it
// to the autofill engine as a dom.Document.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/config"
)

// Session owns the playwright driver, one browser and one browsing context
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// Launch starts the driver and a browser per cfg
func Launch(cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.InstallDriver {
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{engineName(cfg.Engine)},
			Verbose:  false,
		}); err != nil {
			return nil, fmt.Errorf("installing playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browserOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.SlowMo > 0 {
		browserOpts.SlowMo = playwright.Float(cfg.SlowMo)
	}

	browser, err := browserType(pw, cfg.Engine).Launch(browserOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 900,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	if cfg.ActionTimeout > 0 {
		browserCtx.SetDefaultTimeout(millis(cfg.ActionTimeout))
	}

	logger.Info("browser launched",
		zap.String("engine", engineName(cfg.Engine)),
		zap.Bool("headless", cfg.Headless),
	)

	return &Session{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		cfg:     cfg,
		logger:  logger.Named("browser"),
	}, nil
}

// Open navigates a new tab to url and snapshots it
func (s *Session) Open(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}

	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}
	if s.cfg.NavigationWait > 0 {
		gotoOpts.Timeout = playwright.Float(millis(s.cfg.NavigationWait))
	}
	if _, err := page.Goto(url, gotoOpts); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	p, err := newPage(page, s.logger)
	if err != nil {
		page.Close()
		return nil, err
	}
	if err := p.Snapshot(ctx); err != nil {
		page.Close()
		return nil, err
	}
	return p, nil
}

// Close cleans up browser resources
func (s *Session) Close() error {
	if s.context != nil {
		s.context.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		return s.pw.Stop()
	}
	return nil
}

func browserType(pw *playwright.Playwright, engine string) playwright.BrowserType {
	switch engine {
	case "firefox":
		return pw.Firefox
	case "webkit":
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

func engineName(engine string) string {
	switch engine {
	case "firefox", "webkit":
		return engine
	default:
		return "chromium"
	}
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
