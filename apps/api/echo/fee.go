package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
)

type feeApi struct {
	conf     *core.Config
	svc      *fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := feeApi{conf: s.conf, svc: s.deps.FeeSvc, validate: s.deps.Validate}

	fg := g.Group("/fees", jwt)
	fg.POST("", api.recordSubmission, adminMiddleware())
	fg.GET("", api.listAll, adminMiddleware())
	fg.GET("/receipts/:receiptNo", api.getReceipt, adminMiddleware())
	fg.GET("/:rollNo", api.listByRollNumber, adminOrParentMiddleware())
}

func (api *feeApi) recordSubmission(ctx echo.Context) error {
	var data fee.SubmissionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.RecordSubmission(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording submission")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *feeApi) listAll(ctx echo.Context) error {
	page, err := api.svc.ListAll(ctx.Request().Context(), bindPagination(ctx, api.conf.Pagination))
	if err != nil {
		return errors.Wrap(err, "listing fees")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *feeApi) listByRollNumber(ctx echo.Context) error {
	rollNo, err := rollNoParam(ctx)
	if err != nil {
		return err
	}
	sl, err := api.svc.ListByRollNumber(ctx.Request().Context(), rollNo)
	if err != nil {
		return errors.Wrap(err, "listing student fees")
	}
	return ctx.JSON(http.StatusOK, sl)
}

func (api *feeApi) getReceipt(ctx echo.Context) error {
	receiptNo, err := strconv.ParseInt(ctx.Param("receiptNo"), 10, 64)
	if err != nil {
		return core.NewFieldError("receiptNo", errInvalidNumber)
	}
	r, err := api.svc.GetReceipt(ctx.Request().Context(), receiptNo)
	if err != nil {
		return errors.Wrap(err, "getting receipt")
	}
	return ctx.JSON(http.StatusOK, r)
}
