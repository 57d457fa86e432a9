package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/application"
)

type applicationApi struct {
	svc      *application.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, svc *application.Service, validate *validator.Validate) {
	api := applicationApi{svc: svc, validate: validate}

	ag := g.Group("/applications")
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/status", api.updateStatus)
}

// Handlers

func (api *applicationApi) create(ctx echo.Context) error {
	var data application.NewApplication
	if err := bindAndValidate(ctx, api.validate, &data, "NewApplication"); err != nil {
		return err
	}

	app, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) updateStatus(ctx echo.Context) error {
	var data application.StatusUpdate
	if err := bindAndValidate(ctx, api.validate, &data, "StatusUpdate"); err != nil {
		return err
	}

	app, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating application status")
	}
	return ctx.JSON(http.StatusOK, app)
}
