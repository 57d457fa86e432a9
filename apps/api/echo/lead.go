package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/lead"
)

type (
	leadApi struct {
		svc      *lead.Service
		validate *validator.Validate
	}

	// NewLeadRequest is the payload of POST /v1/leads.
	NewLeadRequest struct {
		lead.NewLead
		ActorID string `json:"actor_id"`
	}

	// BulkTransitionResponse lists the leads actually moved.
	BulkTransitionResponse struct {
		Leads []lead.Lead `json:"leads"`
	}
)

func registerLeadAPI(g *echo.Group, svc *lead.Service, validate *validator.Validate) {
	api := leadApi{svc: svc, validate: validate}

	lg := g.Group("/leads")
	lg.POST("", api.create)
	lg.POST("/stage", api.bulkTransition)
	lg.GET("/:id", api.retrieve)
	lg.GET("/:id/history", api.history)
	lg.POST("/:id/stage", api.transition)
}

// Handlers

func (api *leadApi) create(ctx echo.Context) error {
	var data NewLeadRequest
	if err := bindAndValidate(ctx, api.validate, &data, "NewLeadRequest"); err != nil {
		return err
	}

	ld, err := api.svc.Create(ctx.Request().Context(), data.NewLead, data.ActorID)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, ld)
}

func (api *leadApi) retrieve(ctx echo.Context) error {
	ld, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lead")
	}
	return ctx.JSON(http.StatusOK, ld)
}

func (api *leadApi) history(ctx echo.Context) error {
	entries, err := api.svc.History(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying stage history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *leadApi) transition(ctx echo.Context) error {
	var data lead.Transition
	if err := bindAndValidate(ctx, api.validate, &data, "Transition"); err != nil {
		return err
	}

	ld, err := api.svc.Transition(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "transitioning lead")
	}
	return ctx.JSON(http.StatusOK, ld)
}

func (api *leadApi) bulkTransition(ctx echo.Context) error {
	var data lead.BulkTransition
	if err := bindAndValidate(ctx, api.validate, &data, "BulkTransition"); err != nil {
		return err
	}

	leads, err := api.svc.BulkTransition(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "transitioning leads")
	}
	if leads == nil {
		leads = make([]lead.Lead, 0)
	}
	return ctx.JSON(http.StatusOK, BulkTransitionResponse{Leads: leads})
}
