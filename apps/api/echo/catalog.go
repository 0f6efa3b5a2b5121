package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/kit"
)

type catalogApi struct {
	batches  *batch.Service
	kits     *kit.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := catalogApi{batches: s.deps.BatchSvc, kits: s.deps.KitSvc, validate: s.deps.Validate}

	bg := g.Group("/batches", jwt, adminMiddleware())
	bg.POST("", api.createBatch)
	bg.GET("", api.listBatches)
	bg.GET("/:id", api.retrieveBatch)
	bg.PUT("/:id", api.updateBatch)
	bg.DELETE("/:id", api.deleteBatch)

	kg := g.Group("/kits", jwt, adminMiddleware())
	kg.POST("", api.createKit)
	kg.GET("", api.listKits)
}

func (api *catalogApi) createBatch(ctx echo.Context) error {
	var data batch.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.batches.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ctx.JSON(http.StatusCreated, b.View())
}

func (api *catalogApi) listBatches(ctx echo.Context) error {
	batches, err := api.batches.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing batches")
	}
	views := make([]interface{}, 0, len(batches))
	for _, b := range batches {
		views = append(views, b.View())
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *catalogApi) retrieveBatch(ctx echo.Context) error {
	b, err := api.batches.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting batch")
	}
	return ctx.JSON(http.StatusOK, b.View())
}

func (api *catalogApi) updateBatch(ctx echo.Context) error {
	var data batch.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.batches.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ctx.JSON(http.StatusOK, b.View())
}

func (api *catalogApi) deleteBatch(ctx echo.Context) error {
	if err := api.batches.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) createKit(ctx echo.Context) error {
	var data kit.NewKit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewKit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	k, err := api.kits.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating kit")
	}
	return ctx.JSON(http.StatusCreated, k)
}

func (api *catalogApi) listKits(ctx echo.Context) error {
	kits, err := api.kits.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing kits")
	}
	return ctx.JSON(http.StatusOK, kits)
}
