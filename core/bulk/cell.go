package bulk

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
)

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

var (
	errNotANumber   = errors.New("must be a number")
	errNotWhole     = errors.New("must be a whole number")
	errTooLarge     = errors.New("must not exceed 1000000000000")
	errNegative     = errors.New("must not be negative")
	errNotPositive  = errors.New("must be greater than 0")
	errRequired     = errors.New("is required")
	errInvalidDate  = errors.New("must be a valid date")
	errInvalidRoll  = errors.New("must be a roll number between 1 and 9999999")
	errDuplicateRow = errors.New("appears more than once in the sheet")
)

// Cell is a spreadsheet cell converted to JSON: a string, a number, a boolean or null.
// It keeps the raw text and converts on demand.
type Cell string

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
	default: // number or boolean
		*c = Cell(data)
	}
	return nil
}

func (c Cell) String() string { return core.CleanString(string(c)) }

func (c Cell) Empty() bool { return c.String() == "" }

// Float parses numbers written with thousands separators too ("1,20,000").
func (c Cell) Float() (float64, error) {
	s := strings.NewReplacer(",", "", " ", "").Replace(c.String())
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotANumber
	}
	return f, nil
}

func (c Cell) Int64() (int64, error) {
	f, err := c.Float()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errNotWhole
	}
	if math.Abs(f) > float64(core.MaxAmount) {
		return 0, errTooLarge
	}
	return int64(f), nil
}

// Amount is a non-negative whole amount. An empty cell is 0.
func (c Cell) Amount() (int64, error) {
	if c.Empty() {
		return 0, nil
	}
	n, err := c.Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

func (c Cell) RollNo() (int, error) {
	if c.Empty() {
		return 0, errRequired
	}
	n, err := c.Int64()
	if err != nil || n < 1 || n > core.MaxRollNumber {
		return 0, errInvalidRoll
	}
	return int(n), nil
}

// Date accepts the date formats of core.ParseDate and Excel serial dates.
func (c Cell) Date() (time.Time, error) {
	s := c.String()
	if s == "" {
		return time.Time{}, errRequired
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 1 || f > maxExcelSerial {
			return time.Time{}, errInvalidDate
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, errInvalidDate
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

// OptionalDate returns nil for an empty cell.
func (c Cell) OptionalDate() (*time.Time, error) {
	if c.Empty() {
		return nil, nil
	}
	t, err := c.Date()
	if err != nil {
		return nil, err
	}
	return &t, nil
}
