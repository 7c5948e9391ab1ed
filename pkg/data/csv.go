// Package data loads historical OHLCV series and replays them through the
// engine's market data contract.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// ColumnMapping describes where each OHLCV field lives in a CSV row.
type ColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string // Go layout; empty means unix milliseconds
}

// DefaultFormat matches exported exchange kline dumps:
// timestamp(ms),open,high,low,close,volume.
var DefaultFormat = ColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
}

// LoadCSV reads a full OHLCV series from a CSV file using DefaultFormat.
func LoadCSV(path string) ([]types.OHLCV, error) {
	return LoadCSVWithFormat(path, DefaultFormat)
}

// LoadCSVWithFormat reads a series with an explicit column mapping.
// Malformed rows are skipped with a warning rather than aborting the load.
func LoadCSVWithFormat(path string, format ColumnMapping) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("data: read header of %s: %w", path, err)
	}

	var series []types.OHLCV
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: %s line %d: %w", path, line+1, err)
		}
		line++

		if len(record) < format.MinColumns {
			log.Warn().Str("file", path).Int("line", line).Msg("row has too few columns, skipping")
			continue
		}

		ts, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
		if err != nil {
			log.Warn().Str("file", path).Int("line", line).Err(err).Msg("bad timestamp, skipping row")
			continue
		}

		bar := types.OHLCV{Timestamp: ts}
		fields := []struct {
			col  int
			dest *float64
		}{
			{format.OpenCol, &bar.Open},
			{format.HighCol, &bar.High},
			{format.LowCol, &bar.Low},
			{format.CloseCol, &bar.Close},
			{format.VolumeCol, &bar.Volume},
		}
		ok := true
		for _, f := range fields {
			v, err := strconv.ParseFloat(record[f.col], 64)
			if err != nil {
				log.Warn().Str("file", path).Int("line", line).Err(err).Msg("bad numeric field, skipping row")
				ok = false
				break
			}
			*f.dest = v
		}
		if !ok {
			continue
		}
		series = append(series, bar)
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("data: %s contains no usable rows", path)
	}
	return series, nil
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	if layout != "" {
		return time.Parse(layout, raw)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("not unix milliseconds: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
