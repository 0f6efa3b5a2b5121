package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	orderingParam = "ordering"

	errInvalidNumber = errors.New("must be a number")
	errInvalidDate   = errors.New("must be a valid date (YYYY-MM-DD)")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPagination reads `page` and `pageSize`. Missing or malformed values fall back to the defaults.
func bindPagination(ctx echo.Context, conf core.PaginationConfig) core.Pagination {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	size, _ := strconv.Atoi(ctx.QueryParam("pageSize"))
	return core.NewPagination(page, size, conf)
}

func intParam(name, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, core.NewFieldError(name, errInvalidNumber)
	}
	return n, nil
}

func rollNoParam(ctx echo.Context) (int, error) {
	return intParam("rollNo", ctx.Param("rollNo"))
}

// dateQuery parses an optional YYYY-MM-DD query param. The zero time means absent.
func dateQuery(ctx echo.Context, name string) (time.Time, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, core.NewFieldError(name, errInvalidDate)
	}
	return d, nil
}
