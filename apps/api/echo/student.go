package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

const maxSuggestions = 50

type studentApi struct {
	conf     *core.Config
	svc      *student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := studentApi{conf: s.conf, svc: s.deps.StudentSvc, validate: s.deps.Validate}

	sg := g.Group("/students", jwt, adminMiddleware())
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/suggestions", api.suggestRollNumbers)
	sg.GET("/:rollNo", api.retrieve)
	sg.PUT("/:rollNo", api.update)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	page, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPagination(ctx, api.conf.Pagination))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *studentApi) suggestRollNumbers(ctx echo.Context) error {
	count := 1
	if v := ctx.QueryParam("count"); v != "" {
		n, err := intParam("count", v)
		if err != nil {
			return err
		}
		count = n
	}
	if count > maxSuggestions {
		count = maxSuggestions
	}

	nums, err := api.svc.SuggestRollNumbers(ctx.Request().Context(), count)
	if err != nil {
		return errors.Wrap(err, "suggesting roll numbers")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"rollNumbers": nums})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	rollNo, err := rollNoParam(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), rollNo)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	rollNo, err := rollNoParam(ctx)
	if err != nil {
		return err
	}
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Update(ctx.Request().Context(), rollNo, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}
