// Package gateway ingests historical market data for strategies and the
// backtester. It is intentionally the only place that knows about on-disk
// CSV layout — strategies never see a file path, only MarketDataPoint values.
package gateway

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

// expected header columns, in order.
var header = []string{"Datetime", "Open", "High", "Low", "Close", "Volume", "Symbol"}

// LoadMarketData reads csvPath and returns every row that parses cleanly as
// a types.MarketDataPoint, in file order. Rows with unparseable timestamps,
// missing fields, or a non-numeric Close are skipped and logged rather than
// aborting the whole load.
func LoadMarketData(csvPath string, logger *log.Logger) ([]types.MarketDataPoint, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows; they're skipped individually below

	cols, err := r.Read()
	if err != nil {
		return nil, err
	}
	idx := columnIndex(cols)

	var out []types.MarketDataPoint
	rowNum := 1
	for {
		rowNum++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Printf("[gateway] row %d: read error, skipping: %v", rowNum, err)
			continue
		}

		mdp, ok := parseRow(record, idx)
		if !ok {
			logger.Printf("[gateway] row %d: unparseable, skipping", rowNum)
			continue
		}
		out = append(out, mdp)
	}

	return out, nil
}

type columns struct {
	datetime, close, symbol int
}

// columnIndex maps header names to positions so the file's column order
// need not match the canonical header list exactly.
func columnIndex(cols []string) columns {
	idx := columns{-1, -1, -1}
	for i, c := range cols {
		switch strings.TrimSpace(c) {
		case "Datetime":
			idx.datetime = i
		case "Close":
			idx.close = i
		case "Symbol":
			idx.symbol = i
		}
	}
	return idx
}

func parseRow(record []string, idx columns) (types.MarketDataPoint, bool) {
	if idx.datetime < 0 || idx.close < 0 || idx.symbol < 0 {
		return types.MarketDataPoint{}, false
	}
	if idx.datetime >= len(record) || idx.close >= len(record) || idx.symbol >= len(record) {
		return types.MarketDataPoint{}, false
	}

	ts, ok := parseTimestamp(record[idx.datetime])
	if !ok {
		return types.MarketDataPoint{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(record[idx.close]), 64)
	if err != nil {
		return types.MarketDataPoint{}, false
	}

	symbol := strings.TrimSpace(record[idx.symbol])
	mdp := types.MarketDataPoint{Timestamp: ts, Symbol: symbol, Price: price}
	if err := mdp.Validate(); err != nil {
		return types.MarketDataPoint{}, false
	}
	return mdp, true
}

// ISO-8601 layouts accepted for the Datetime column, 'T' or space separated,
// with or without a timezone suffix.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
