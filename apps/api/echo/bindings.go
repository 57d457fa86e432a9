package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/task"
)

// bindAndValidate binds the request body into data, then runs its `validate` tags.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data interface{}, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %s", name)
	}
	return validate.Struct(data)
}

// bindTaskFilter reads ?lead_id=&application_id=&automation_tag=&status=... into a task.QueryFilter.
func bindTaskFilter(ctx echo.Context) task.QueryFilter {
	filter := task.QueryFilter{
		LeadID:        ctx.QueryParam("lead_id"),
		ApplicationID: ctx.QueryParam("application_id"),
		AutomationTag: ctx.QueryParam("automation_tag"),
	}
	for _, st := range ctx.QueryParams()["status"] {
		if st != "" {
			filter.Statuses = append(filter.Statuses, task.Status(st))
		}
	}
	return filter
}
