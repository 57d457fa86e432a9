package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/task"
)

type taskApi struct {
	svc *task.Service
}

func registerTaskAPI(g *echo.Group, svc *task.Service) {
	api := taskApi{svc: svc}

	tg := g.Group("/tasks")
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
}

// Handlers

func (api *taskApi) query(ctx echo.Context) error {
	tasks, err := api.svc.Query(ctx.Request().Context(), bindTaskFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting task")
	}
	return ctx.JSON(http.StatusOK, t)
}
