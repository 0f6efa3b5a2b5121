package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/testscore"
)

type recordsApi struct {
	attendance *attendance.Service
	scores     *testscore.Service
}

func registerRecordsAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := recordsApi{attendance: s.deps.AttendanceSvc, scores: s.deps.ScoreSvc}

	g.GET("/attendance/:rollNo", api.listAttendance, jwt, adminOrParentMiddleware())

	tg := g.Group("/testscores", jwt)
	tg.GET("", api.listTests, adminMiddleware())
	tg.GET("/:rollNo", api.listScores, adminOrParentMiddleware())
}

func (api *recordsApi) listAttendance(ctx echo.Context) error {
	rollNo, err := rollNoParam(ctx)
	if err != nil {
		return err
	}
	from, err := dateQuery(ctx, "from")
	if err != nil {
		return err
	}
	to, err := dateQuery(ctx, "to")
	if err != nil {
		return err
	}

	records, err := api.attendance.ListByRollNumber(ctx.Request().Context(), rollNo, from, to)
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *recordsApi) listTests(ctx echo.Context) error {
	tests, err := api.scores.ListTests(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing tests")
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *recordsApi) listScores(ctx echo.Context) error {
	rollNo, err := rollNoParam(ctx)
	if err != nil {
		return err
	}
	scores, err := api.scores.ListByRollNumber(ctx.Request().Context(), rollNo)
	if err != nil {
		return errors.Wrap(err, "listing scores")
	}
	return ctx.JSON(http.StatusOK, scores)
}
