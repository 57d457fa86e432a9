package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/visit"
)

type (
	visitApi struct {
		svc      *visit.Service
		validate *validator.Validate
	}

	// InviteRequest is the payload of POST /v1/visits/:id/attendees.
	InviteRequest struct {
		LeadID string `json:"lead_id" validate:"required,notblank"`
	}

	// SessionResponse is a session with its attendees.
	SessionResponse struct {
		visit.Session
		Attendees []visit.Attendee `json:"attendees"`
	}
)

func registerVisitAPI(g *echo.Group, svc *visit.Service, validate *validator.Validate) {
	api := visitApi{svc: svc, validate: validate}

	vg := g.Group("/visits")
	vg.POST("", api.create)
	vg.GET("/:id", api.retrieve)
	vg.POST("/:id/attendees", api.invite)
	vg.POST("/:id/attendees/:attendeeID/check-in", api.checkIn)
}

// Handlers

func (api *visitApi) create(ctx echo.Context) error {
	var data visit.NewSession
	if err := bindAndValidate(ctx, api.validate, &data, "NewSession"); err != nil {
		return err
	}

	sess, err := api.svc.CreateSession(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating visit session")
	}
	return ctx.JSON(http.StatusCreated, SessionResponse{Session: sess, Attendees: make([]visit.Attendee, 0)})
}

func (api *visitApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sess, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting visit session")
	}
	attendees, err := api.svc.Attendees(reqCtx, sess.ID)
	if err != nil {
		return errors.Wrap(err, "querying attendees")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: sess, Attendees: attendees})
}

func (api *visitApi) invite(ctx echo.Context) error {
	var data InviteRequest
	if err := bindAndValidate(ctx, api.validate, &data, "InviteRequest"); err != nil {
		return err
	}

	att, err := api.svc.Invite(ctx.Request().Context(), ctx.Param("id"), data.LeadID)
	if err != nil {
		return errors.Wrap(err, "inviting lead")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *visitApi) checkIn(ctx echo.Context) error {
	att, err := api.svc.CheckIn(ctx.Request().Context(), ctx.Param("id"), ctx.Param("attendeeID"))
	if err != nil {
		return errors.Wrap(err, "checking attendee in")
	}
	return ctx.JSON(http.StatusOK, att)
}
