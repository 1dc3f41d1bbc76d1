// Package timetable renders prayer timetables and keeps an offline copy.
//
// Prayer times change slowly and predictably, so a month fetched once is
// worth keeping: the cache lets `masjidctl timetable` answer on a train or
// behind a captive portal from the last synced copy.
package timetable

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/masjid-network/masjidctl/internal/api"
)

var columns = []string{"Date", "Fajr", "Sunrise", "Dhuhr", "Asr", "Maghrib", "Isha"}

func dayRow(d api.PrayerDay) []string {
	return []string{d.Date, d.Fajr, d.Sunrise, d.Dhuhr, d.Asr, d.Maghrib, d.Isha}
}

// Render writes a month as an aligned text table.
func Render(w io.Writer, tt *api.MonthlyTimetable) error {
	fmt.Fprintf(w, "Prayer times for %s, %04d-%02d\n\n", tt.Location, tt.Year, tt.Month)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, day := range tt.Days {
		for i, cell := range dayRow(day) {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// RenderDay writes a single day in the same layout.
func RenderDay(w io.Writer, location string, day api.PrayerDay) error {
	fmt.Fprintf(w, "Prayer times for %s on %s\n\n", location, day.Date)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, col := range columns[1:] {
		fmt.Fprintf(tw, "%s\t", col)
	}
	fmt.Fprintln(tw)
	for _, cell := range dayRow(day)[1:] {
		fmt.Fprintf(tw, "%s\t", cell)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

// WriteCSV writes a month as CSV with a header row.
func WriteCSV(w io.Writer, tt *api.MonthlyTimetable) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = strings.ToLower(col)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, day := range tt.Days {
		if err := cw.Write(dayRow(day)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

