package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Scraper extracts pool statistics from a JS-rendered stats page via headless
// Chrome. Last-resort path for pools whose API is down but whose public
// dashboard still renders; enabled with SCRAPE_FALLBACK.
type Scraper struct {
	logger *slog.Logger
}

func NewScraper(logger *slog.Logger) *Scraper {
	return &Scraper{logger: logger}
}

// Pool stats pages commonly annotate their figures with data-stat attributes;
// parse whatever subset is present and let the caller decide if it is enough.
const extractStatsJS = `(() => {
	const num = (sel) => {
		const el = document.querySelector(sel);
		if (!el) return 0;
		const v = parseFloat(el.textContent.replace(/[^0-9.eE+-]/g, ''));
		return isNaN(v) ? 0 : v;
	};
	return JSON.stringify({
		hashrate: num('[data-stat="hashrate"]'),
		miners: Math.round(num('[data-stat="miners"]')),
		blocks_24h: Math.round(num('[data-stat="blocks24h"]')),
		luck_7d: num('[data-stat="luck"]'),
	});
})()`

func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*PoolStats, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()
	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, 30*time.Second)
	defer cancelTimeout()

	var raw string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second), // give the SPA a beat to paint its numbers
		chromedp.Evaluate(extractStatsJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, err)
	}

	var stats PoolStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("parse scraped stats: %w", err)
	}
	if stats.Hashrate <= 0 {
		return nil, fmt.Errorf("scrape %s: no hashrate on page", pageURL)
	}
	s.logger.Info("scraped pool stats", "url", pageURL, "hashrate", stats.Hashrate)
	return &stats, nil
}
