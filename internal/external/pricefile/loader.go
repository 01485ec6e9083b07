package pricefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hansel67/stock-analyzer/internal/contracts"
)

// dateLayouts 지원하는 날짜 형식 (yfinance CSV 내보내기 포함)
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// Load reads a local price history file (.csv or .xlsx) into a series.
// Rows may come in any order; they are sorted by date.
func Load(path, symbol string) (contracts.PriceSeries, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s: %v", contracts.ErrDataUnavailable, path, err)
	}

	points, err := parseRows(rows)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(points) == 0 {
		return contracts.PriceSeries{}, fmt.Errorf("%w: %s has no price rows", contracts.ErrDataUnavailable, path)
	}

	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	return contracts.NewPriceSeries(symbol, points)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readXLSX 첫 번째 시트만 읽음
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// parseRows locates the date/close columns from an optional header
// ("Adj Close" wins over "Close") and converts the remaining rows.
func parseRows(rows [][]string) ([]contracts.PricePoint, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	dateCol, closeCol := 0, 1
	start := 0
	if _, err := parseDate(cell(rows[0], 0)); err != nil {
		dc, cc, ok := headerColumns(rows[0])
		if !ok {
			return nil, fmt.Errorf("%w: header %v has no date/close columns", contracts.ErrInvalidSeries, rows[0])
		}
		dateCol, closeCol = dc, cc
		start = 1
	}

	points := make([]contracts.PricePoint, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		rawDate := cell(row, dateCol)
		rawClose := cell(row, closeCol)
		if rawDate == "" && rawClose == "" {
			continue
		}
		if isMissing(rawClose) {
			continue
		}

		d, err := parseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", contracts.ErrInvalidSeries, i+1, err)
		}
		c, err := strconv.ParseFloat(strings.ReplaceAll(rawClose, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: close %q is not a number", contracts.ErrInvalidPrice, i+1, rawClose)
		}
		points = append(points, contracts.PricePoint{Date: d, Close: c})
	}

	sort.SliceStable(points, func(a, b int) bool { return points[a].Date.Before(points[b].Date) })
	return points, nil
}

func headerColumns(header []string) (dateCol, closeCol int, ok bool) {
	dateCol, closeCol = -1, -1
	adj := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "datetime", "trade_date":
			dateCol = i
		case "close", "close_price":
			closeCol = i
		case "adj close", "adj_close", "adjclose":
			adj = i
		}
	}
	if adj >= 0 {
		closeCol = adj
	}
	return dateCol, closeCol, dateCol >= 0 && closeCol >= 0
}

// parseDate normalises to the UTC calendar day
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "nan", "-":
		return true
	}
	return false
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
