// Package audit writes a durable, append-only record of every order event
// the order manager produces. Each process run gets its own CSV file so
// concurrent drivers never interleave writes into the same file.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

var auditHeader = []string{
	"event_time", "event_type", "id", "side", "symbol", "qty", "price", "ts",
	"status", "filled_qty", "filled_price", "note",
}

// Logger appends order lifecycle events to a per-run CSV file.
type Logger struct {
	path       string
	headerDone bool
}

// NewLogger derives order_audits/order_audit_<YYYYMMDD_HHMMSS>.csv under dir
// and returns a Logger ready to append. The order_audits subdirectory is
// created if it does not exist.
func NewLogger(dir string, runStart time.Time) (*Logger, error) {
	auditDir := filepath.Join(dir, "order_audits")
	if err := os.MkdirAll(auditDir, 0755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	name := fmt.Sprintf("order_audit_%s.csv", runStart.Format("20060102_150405"))
	return &Logger{path: filepath.Join(auditDir, name)}, nil
}

// LogOrderEvent appends one row. status/filledQty/filledPrice/note are
// optional — pass zero values when not applicable to the event type.
func (l *Logger) LogOrderEvent(order types.Order, eventType, status string, filledQty int, filledPrice float64, note string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if !l.headerDone {
		info, err := f.Stat()
		if err == nil && info.Size() == 0 {
			if err := w.Write(auditHeader); err != nil {
				return fmt.Errorf("audit: write header: %w", err)
			}
		}
		l.headerDone = true
	}

	row := []string{
		time.Now().Format(time.RFC3339),
		eventType,
		strconv.FormatInt(order.ID, 10),
		string(order.Side),
		order.Symbol,
		strconv.Itoa(order.Qty),
		strconv.FormatFloat(order.Price, 'f', -1, 64),
		strconv.FormatInt(order.Ts, 10),
		status,
		strconv.Itoa(filledQty),
		strconv.FormatFloat(filledPrice, 'f', -1, 64),
		note,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("audit: write row: %w", err)
	}
	return nil
}

// Path returns the CSV file this logger writes to.
func (l *Logger) Path() string {
	return l.path
}
