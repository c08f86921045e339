package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/school"
)

type schoolApi struct {
	svc    *school.Service
	tokens *TokenIssuer
}

func registerSchoolAPI(g *echo.Group, auth echo.MiddlewareFunc, tokens *TokenIssuer, svc *school.Service) {
	api := schoolApi{svc: svc, tokens: tokens}

	// un-authed endpoints
	g.POST("/schools/register", api.register)
	g.POST("/schools/login", api.login)

	// authed endpoints
	g.GET("/schools/:id", api.retrieve, auth, adminMiddleware())
}

// Handlers

func (api *schoolApi) register(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}

	sch, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	token, err := api.tokens.GenerateToken(sch.Actor())
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, Profile: sch})
}

func (api *schoolApi) login(ctx echo.Context) error {
	var data school.Login
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Login")
	}

	sch, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating school")
	}
	token, err := api.tokens.GenerateToken(sch.Actor())
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: sch})
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving school")
	}
	return ctx.JSON(http.StatusOK, sch)
}
