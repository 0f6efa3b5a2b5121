package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/report"
	exportsvc "github.com/trezcool/academia/services/export"
)

type reportApi struct {
	reports *report.Service
	exports *exportsvc.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := reportApi{reports: s.deps.ReportSvc, exports: s.deps.ExportSvc}

	g.GET("/reports/summary", api.summary, jwt, adminMiddleware())
	g.GET("/exports/students", api.exportStudents, jwt, adminMiddleware())
}

func (api *reportApi) summary(ctx echo.Context) error {
	s, err := api.reports.Summary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building summary")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) exportStudents(ctx echo.Context) error {
	rollStart, err := intParam("rollStart", ctx.QueryParam("rollStart"))
	if err != nil {
		return err
	}
	rollEnd, err := intParam("rollEnd", ctx.QueryParam("rollEnd"))
	if err != nil {
		return err
	}
	includeFees := false
	if v := ctx.QueryParam("includeFees"); v != "" {
		if includeFees, err = strconv.ParseBool(v); err != nil {
			return core.NewFieldError("includeFees", errors.New("must be a boolean"))
		}
	}

	// build before writing headers so errors still render as JSON
	f, err := api.exports.Students(ctx.Request().Context(), rollStart, rollEnd, includeFees)
	if err != nil {
		return errors.Wrap(err, "exporting students")
	}
	defer func() { _ = f.Close() }()

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, exportsvc.ContentType)
	resp.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportsvc.FileName(rollStart, rollEnd)))
	resp.WriteHeader(http.StatusOK)
	return f.Write(resp)
}
