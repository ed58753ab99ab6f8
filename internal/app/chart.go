package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gold-price-alerts/internal/charting"
	"gold-price-alerts/internal/storage"
)

const (
	// ViewDaily selects the trailing 24-hour hourly view.
	ViewDaily = "daily"
	// ViewWeekly selects the trailing 7-day four-hourly view.
	ViewWeekly = "weekly"
)

// Chart renders the requested bucketed view of the price history as a PNG.
func (a *App) Chart(ctx context.Context, opts ChartOptions) error {
	if opts.OutPath == "" {
		return errors.New("--out must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot chart")
	}
	if closeStore != nil {
		defer closeStore()
	}

	img, err := a.renderView(ctx, store, opts.View, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := ensureDir(opts.OutPath); err != nil {
		return err
	}
	if err := os.WriteFile(opts.OutPath, img, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}

	a.Logger.Info().Str("view", opts.View).Str("path", opts.OutPath).Msg("chart written")
	return nil
}

func (a *App) renderView(ctx context.Context, store *storage.Store, view string, now time.Time) ([]byte, error) {
	renderOpts := charting.RenderOptions{
		Width:  a.Config.Charting.Width,
		Height: a.Config.Charting.Height,
	}

	switch view {
	case ViewDaily:
		// one extra hour covers the partial bucket at the window edge
		samples, err := store.SamplesSince(ctx, now.Truncate(time.Hour).Add(-24*time.Hour))
		if err != nil {
			return nil, err
		}
		buckets := charting.Daily(samples, now, charting.DailyOptions{})
		return charting.Render(buckets, "Hourly Price History (past 24 hours)", "", renderOpts)

	case ViewWeekly:
		samples, err := a.weeklySamples(ctx, store, now)
		if err != nil {
			return nil, err
		}
		buckets := charting.Weekly(samples, now, charting.WeeklyOptions{})
		return charting.Render(buckets, "Daily Price History (past 7 days)",
			"All dates captured in Coordinated Universal Time (UTC)", renderOpts)

	default:
		return nil, fmt.Errorf("unknown view %q (want %s or %s)", view, ViewDaily, ViewWeekly)
	}
}

// weeklySamples loads the window ending on the most recent sample's day, so
// a stale store still charts its final week.
func (a *App) weeklySamples(ctx context.Context, store *storage.Store, now time.Time) ([]storage.Sample, error) {
	latest, err := store.LatestSamples(ctx, 1)
	if err != nil {
		return nil, err
	}
	anchor := now
	if len(latest) > 0 {
		anchor = latest[0].Timestamp.UTC()
	}
	from := anchor.Truncate(24 * time.Hour).AddDate(0, 0, -6)
	return store.SamplesSince(ctx, from)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
