package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/bulk"
)

type bulkApi struct {
	svc *bulk.Service
}

func registerBulkAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := bulkApi{svc: s.deps.BulkSvc}

	bg := g.Group("/bulk", jwt, adminMiddleware())
	bg.POST("/students", api.seedStudents)
	bg.POST("/fees", api.applySubmissions)
	bg.POST("/kits", api.assignKits)
	bg.POST("/attendance", api.importAttendance)
	bg.POST("/testscores", api.importTestScores)
}

type (
	StudentSheet struct {
		Rows []bulk.StudentRow `json:"rows"`
	}

	SubmissionSheet struct {
		Rows []bulk.SubmissionRow `json:"rows"`
	}

	KitSheet struct {
		Rows []bulk.KitRow `json:"rows"`
	}

	AttendanceSheet struct {
		Date bulk.Cell            `json:"date"`
		Rows []bulk.AttendanceRow `json:"rows"`
	}

	ScoreSheet struct {
		Name string          `json:"name"`
		Date bulk.Cell       `json:"date"`
		Rows []bulk.ScoreRow `json:"rows"`
	}
)

func (api *bulkApi) seedStudents(ctx echo.Context) error {
	var sheet StudentSheet
	if err := ctx.Bind(&sheet); err != nil {
		return errors.Wrap(err, "binding to StudentSheet")
	}
	res, err := api.svc.SeedStudentsWithFees(ctx.Request().Context(), sheet.Rows)
	if err != nil {
		return errors.Wrap(err, "seeding students")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *bulkApi) applySubmissions(ctx echo.Context) error {
	var sheet SubmissionSheet
	if err := ctx.Bind(&sheet); err != nil {
		return errors.Wrap(err, "binding to SubmissionSheet")
	}
	res, err := api.svc.ApplySubmissions(ctx.Request().Context(), sheet.Rows)
	if err != nil {
		return errors.Wrap(err, "applying submissions")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *bulkApi) assignKits(ctx echo.Context) error {
	var sheet KitSheet
	if err := ctx.Bind(&sheet); err != nil {
		return errors.Wrap(err, "binding to KitSheet")
	}
	res, err := api.svc.AssignKits(ctx.Request().Context(), sheet.Rows)
	if err != nil {
		return errors.Wrap(err, "assigning kits")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *bulkApi) importAttendance(ctx echo.Context) error {
	var sheet AttendanceSheet
	if err := ctx.Bind(&sheet); err != nil {
		return errors.Wrap(err, "binding to AttendanceSheet")
	}
	res, err := api.svc.ImportAttendance(ctx.Request().Context(), sheet.Date.String(), sheet.Rows)
	if err != nil {
		return errors.Wrap(err, "importing attendance")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *bulkApi) importTestScores(ctx echo.Context) error {
	var sheet ScoreSheet
	if err := ctx.Bind(&sheet); err != nil {
		return errors.Wrap(err, "binding to ScoreSheet")
	}
	res, err := api.svc.ImportTestScores(ctx.Request().Context(), sheet.Name, sheet.Date.String(), sheet.Rows)
	if err != nil {
		return errors.Wrap(err, "importing test scores")
	}
	return ctx.JSON(http.StatusCreated, res)
}
