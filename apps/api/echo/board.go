package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/board"
)

type boardApi struct {
	svc *board.Service
}

func registerBoardAPI(g *echo.Group, auth echo.MiddlewareFunc, svc *board.Service) {
	api := boardApi{svc: svc}
	admin := adminMiddleware()

	// notices
	g.POST("/notices", api.createNotice, auth, admin)
	g.GET("/schools/:id/notices", api.queryNotices, auth)
	g.DELETE("/schools/:id/notices", api.destroySchoolNotices, auth, admin)
	g.GET("/notices/:id", api.retrieveNotice, auth)
	g.PUT("/notices/:id", api.updateNotice, auth, admin)
	g.DELETE("/notices/:id", api.destroyNotice, auth, admin)

	// complains
	g.POST("/complains", api.createComplain, auth, rolesMiddleware(core.RoleTeacher, core.RoleStudent))
	g.GET("/schools/:id/complains", api.queryComplains, auth, admin)
}

// Notices

func (api *boardApi) createNotice(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data board.NewNotice
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}

	notice, err := api.svc.CreateNotice(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, notice)
}

func (api *boardApi) queryNotices(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	notices, err := api.svc.QueryNotices(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	if notices == nil {
		notices = []board.Notice{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *boardApi) retrieveNotice(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	notice, err := api.svc.GetNotice(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving notice")
	}
	return ctx.JSON(http.StatusOK, notice)
}

func (api *boardApi) updateNotice(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data board.UpdateNotice
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNotice")
	}

	notice, err := api.svc.UpdateNotice(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating notice")
	}
	return ctx.JSON(http.StatusOK, notice)
}

func (api *boardApi) destroyNotice(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	notice, err := api.svc.DeleteNotice(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.JSON(http.StatusOK, notice)
}

func (api *boardApi) destroySchoolNotices(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.DeleteNoticesForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting school notices")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Complains

func (api *boardApi) createComplain(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data board.NewComplain
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComplain")
	}

	complain, err := api.svc.CreateComplain(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating complain")
	}
	return ctx.JSON(http.StatusCreated, complain)
}

func (api *boardApi) queryComplains(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	complains, err := api.svc.QueryComplains(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying complains")
	}
	if complains == nil {
		complains = []board.Complain{}
	}
	return ctx.JSON(http.StatusOK, complains)
}
