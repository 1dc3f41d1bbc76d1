package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/masjid-network/masjidctl/internal/timetable"
)

var timetableFlags = struct {
	location string
	year     int
	month    int
	csv      bool
	today    bool
}{}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Show, sync or export prayer times",
	Long: `Show prayer times for a location.

The month is fetched from the backend and kept in a local cache, so the last
synced copy still answers when you are offline. --csv writes the month as CSV
to stdout; --today shows only today.`,
	RunE: runTimetable,
}

func init() {
	f := timetableCmd.Flags()
	f.StringVar(&timetableFlags.location, "location", "", "location (defaults to timetable.location from config)")
	f.IntVar(&timetableFlags.year, "year", 0, "year (defaults to the current year)")
	f.IntVar(&timetableFlags.month, "month", 0, "month 1-12 (defaults to the current month)")
	f.BoolVar(&timetableFlags.csv, "csv", false, "write CSV to stdout")
	f.BoolVar(&timetableFlags.today, "today", false, "show only today")
	rootCmd.AddCommand(timetableCmd)
}

func runTimetable(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.close()

	location := timetableFlags.location
	if location == "" {
		location = app.cfg.Timetable.Location
	}
	if location == "" {
		return fmt.Errorf("no location: pass --location or set timetable.location in the config")
	}

	if timetableFlags.today {
		day, err := app.client.PrayerTimesToday(cmd.Context(), location)
		if err != nil {
			return fmt.Errorf("today's prayer times: %w", err)
		}
		return timetable.RenderDay(os.Stdout, location, *day)
	}

	now := time.Now()
	year := timetableFlags.year
	if year == 0 {
		year = now.Year()
	}
	month := timetableFlags.month
	if month == 0 {
		month = int(now.Month())
	}

	_, _, maxAge, err := app.cfg.Durations()
	if err != nil {
		return err
	}
	cache, err := timetable.OpenCache(app.cfg.Timetable.CachePath, maxAge, app.logger)
	if err != nil {
		app.logger.Warn("timetable cache unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	tt, fromCache, err := timetable.Fetch(cmd.Context(), app.client, cache, location, year, month)
	if err != nil {
		return fmt.Errorf("fetch timetable: %w", err)
	}
	if fromCache {
		fmt.Fprintln(os.Stderr, "Backend unreachable; showing the last synced copy.")
	}

	if timetableFlags.csv {
		return timetable.WriteCSV(os.Stdout, tt)
	}
	return timetable.Render(os.Stdout, tt)
}
