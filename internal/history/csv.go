package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/pkg/utils"
)

// requiredColumns must be present in the header of a history file
var requiredColumns = []string{
	"date", "temperature", "humidity", "wind_speed", "precipitation",
	"pm25", "traffic_index",
}

// LoadOptions tunes how a history file is interpreted
type LoadOptions struct {
	// InterpolatedBefore flags pollutant targets dated before it as
	// interpolated when the file carries no is_interpolated column
	InterpolatedBefore time.Time
}

// LoadCSV reads a history file from disk
func LoadCSV(path string, opts LoadOptions, logger *zap.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f, opts, logger)
}

// rawRow keeps parsed cells before column medians are known
type rawRow struct {
	record   domain.HistoricalRecord
	missing  map[string]bool
	interpOK bool
	aqiOK    bool
}

// ReadCSV parses a history table, imputes missing meteorological and
// pollutant cells with the column median and derives the index from the
// concentration where the file lacks it
func ReadCSV(r io.Reader, opts LoadOptions, logger *zap.Logger) (*Store, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("history: failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("history: missing required column %q", name)
		}
	}

	var rows []rawRow
	line := 1
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("history: failed to read line %d: %w", line, err)
		}

		row, err := parseRow(cells, cols, opts)
		if err != nil {
			return nil, fmt.Errorf("history: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}

	imputed := impute(rows)
	for col, n := range imputed {
		logger.Info("Imputed missing history cells with column median",
			zap.String("column", col),
			zap.Int("count", n))
	}

	records := make([]domain.HistoricalRecord, len(rows))
	for i, row := range rows {
		records[i] = row.record
	}

	store, err := NewStore(records)
	if err != nil {
		return nil, err
	}

	summary := store.Summary()
	logger.Info("Loaded historical records",
		zap.Int("records", summary.TotalRecords),
		zap.String("start", summary.Start),
		zap.String("end", summary.End),
		zap.Int("interpolated", summary.Interpolated))

	return store, nil
}

func parseRow(cells []string, cols map[string]int, opts LoadOptions) (rawRow, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	date, err := time.Parse(domain.DateLayout, firstN(get("date"), len(domain.DateLayout)))
	if err != nil {
		return rawRow{}, fmt.Errorf("invalid date %q", get("date"))
	}

	row := rawRow{missing: make(map[string]bool)}
	rec := &row.record
	rec.Date = date

	floatCell := func(name string, dst *float64) {
		v, ok := parseFinite(get(name))
		if !ok {
			row.missing[name] = true
			return
		}
		*dst = v
	}
	optionalCell := func(name string) *float64 {
		v, ok := parseFinite(get(name))
		if !ok {
			return nil
		}
		return &v
	}

	floatCell("temperature", &rec.Temperature)
	floatCell("humidity", &rec.Humidity)
	floatCell("wind_speed", &rec.WindSpeed)
	floatCell("precipitation", &rec.Precipitation)
	floatCell("pm25", &rec.PM25)
	floatCell("traffic_index", &rec.Congestion)

	if v, ok := parseFinite(get("aqi")); ok {
		rec.AQI = v
		row.aqiOK = true
	}

	rec.PM10 = optionalCell("pm10")
	rec.NO2 = optionalCell("no2")
	rec.SO2 = optionalCell("so2")
	rec.Ozone = optionalCell("ozone")

	rec.Month = int(date.Month())
	if m, err := strconv.Atoi(get("month")); err == nil && m >= 1 && m <= 12 {
		rec.Month = m
	}
	rec.DayOfWeek = domain.WeekdayIndex(date)
	if d, err := strconv.Atoi(get("day_of_week")); err == nil && d >= 0 && d <= 6 {
		rec.DayOfWeek = d
	}
	rec.IsWeekend = rec.DayOfWeek >= 5
	if w, err := strconv.ParseBool(get("is_weekend")); err == nil {
		rec.IsWeekend = w
	}

	if v, err := strconv.ParseBool(get("is_interpolated")); err == nil {
		rec.Interpolated = v
		row.interpOK = true
	} else if !opts.InterpolatedBefore.IsZero() {
		rec.Interpolated = date.Before(opts.InterpolatedBefore)
	}

	return row, nil
}

// impute fills missing cells with the column median and returns fill counts
func impute(rows []rawRow) map[string]int {
	columns := map[string]func(*domain.HistoricalRecord) *float64{
		"temperature":   func(r *domain.HistoricalRecord) *float64 { return &r.Temperature },
		"humidity":      func(r *domain.HistoricalRecord) *float64 { return &r.Humidity },
		"wind_speed":    func(r *domain.HistoricalRecord) *float64 { return &r.WindSpeed },
		"precipitation": func(r *domain.HistoricalRecord) *float64 { return &r.Precipitation },
		"pm25":          func(r *domain.HistoricalRecord) *float64 { return &r.PM25 },
		"traffic_index": func(r *domain.HistoricalRecord) *float64 { return &r.Congestion },
	}

	counts := make(map[string]int)
	for name, field := range columns {
		var present []float64
		for i := range rows {
			if !rows[i].missing[name] {
				present = append(present, *field(&rows[i].record))
			}
		}
		fill := median(present)

		for i := range rows {
			if !rows[i].missing[name] {
				continue
			}
			*field(&rows[i].record) = fill
			counts[name]++

			switch name {
			case "pm25":
				rows[i].record.Interpolated = true
			case "traffic_index":
				rows[i].record.CongestionImputed = true
			}
		}
	}

	for i := range rows {
		if !rows[i].aqiOK || rows[i].missing["pm25"] {
			rows[i].record.AQI = float64(aqi.FromPM25(rows[i].record.PM25))
		}
	}

	return counts
}

// parseFinite reads a numeric cell; NaN and ±Inf tokens count as missing
func parseFinite(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || !utils.IsFinite(v) {
		return 0, false
	}
	return v, true
}

// median of the finite values, 0 when there are none
func median(values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if utils.IsFinite(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
