package backfill

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"featuremill/pkg/domain"
)

// TradeSource yields historical trades in event-time order. Next returns
// io.EOF once the source is exhausted.
type TradeSource interface {
	Next(ctx context.Context) (domain.Trade, error)
	Close() error
}

// SliceSource replays an in-memory trade slice. Used by tests.
type SliceSource struct {
	trades []domain.Trade
	pos    int
}

// NewSliceSource wraps trades in a TradeSource.
func NewSliceSource(trades []domain.Trade) *SliceSource {
	return &SliceSource{trades: trades}
}

func (s *SliceSource) Next(ctx context.Context) (domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return domain.Trade{}, err
	}
	if s.pos >= len(s.trades) {
		return domain.Trade{}, io.EOF
	}
	t := s.trades[s.pos]
	s.pos++
	return t, nil
}

func (s *SliceSource) Close() error { return nil }

// csvColumns is the expected header of a trade dump:
// timestamp,symbol,price,quantity,side,trade_id[,exchange].
const csvMinColumns = 6

// CSVSource streams trades from a CSV dump, one row per trade.
type CSVSource struct {
	file   *os.File
	reader *csv.Reader
	line   int
}

// OpenCSVSource opens a trade dump and skips its header row.
func OpenCSVSource(path string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backfill: open trade dump: %w", err)
	}
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		file.Close()
		return nil, fmt.Errorf("backfill: read trade dump header: %w", err)
	}
	return &CSVSource{file: file, reader: reader, line: 1}, nil
}

func (s *CSVSource) Next(ctx context.Context) (domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return domain.Trade{}, err
	}
	row, err := s.reader.Read()
	if err == io.EOF {
		return domain.Trade{}, io.EOF
	}
	if err != nil {
		return domain.Trade{}, fmt.Errorf("backfill: read trade dump: %w", err)
	}
	s.line++
	if len(row) < csvMinColumns {
		return domain.Trade{}, fmt.Errorf("%w: line %d has %d columns", domain.ErrMalformedRecord, s.line, len(row))
	}

	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("%w: line %d timestamp %q", domain.ErrMalformedRecord, s.line, row[0])
	}
	price, err := decimal.NewFromString(row[2])
	if err != nil {
		return domain.Trade{}, fmt.Errorf("%w: line %d price %q", domain.ErrMalformedRecord, s.line, row[2])
	}
	quantity, err := decimal.NewFromString(row[3])
	if err != nil {
		return domain.Trade{}, fmt.Errorf("%w: line %d quantity %q", domain.ErrMalformedRecord, s.line, row[3])
	}

	trade := domain.Trade{
		Symbol:    row[1],
		Price:     price,
		Quantity:  quantity,
		Side:      domain.Side(row[4]),
		TradeID:   row[5],
		Timestamp: ts,
	}
	if len(row) > csvMinColumns {
		trade.Exchange = row[6]
	}
	if err := trade.Validate(); err != nil {
		return domain.Trade{}, fmt.Errorf("line %d: %w", s.line, err)
	}
	return trade, nil
}

func (s *CSVSource) Close() error {
	return s.file.Close()
}
