package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/ledger"
)

type ledgerApi struct {
	ledger *ledger.Ledger
}

func registerLedgerAPI(g *echo.Group, auth echo.MiddlewareFunc, l *ledger.Ledger) {
	api := ledgerApi{ledger: l}
	admin, marker := adminMiddleware(), markerMiddleware()

	g.POST("/students/:id/attendance", api.recordStudentAttendance, auth, marker)
	g.DELETE("/students/:id/attendance", api.clearStudentAttendance, auth, marker)
	g.POST("/students/:id/results", api.recordExamResult, auth, marker)
	g.POST("/teachers/:id/attendance", api.recordTeacherAttendance, auth, marker)
	g.DELETE("/teachers/:id/attendance", api.clearTeacherAttendance, auth, admin)
	g.DELETE("/subjects/:id/attendance", api.clearSubjectAttendance, auth, admin)
	g.DELETE("/schools/:id/attendance", api.clearSchoolAttendance, auth, admin)
}

// Handlers

func (api *ledgerApi) recordStudentAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data ledger.RecordAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordAttendance")
	}

	student, err := api.ledger.RecordStudentAttendance(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording student attendance")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *ledgerApi) recordTeacherAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data ledger.RecordAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordAttendance")
	}

	teacher, err := api.ledger.RecordTeacherAttendance(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording teacher attendance")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *ledgerApi) recordExamResult(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data ledger.RecordResult
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordResult")
	}

	student, err := api.ledger.RecordExamResult(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording exam result")
	}
	return ctx.JSON(http.StatusOK, student)
}

// clearStudentAttendance clears a student's whole attendance log, or only a subject's entries with `?subject=ID`.
func (api *ledgerApi) clearStudentAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var n int
	if subjectID := ctx.QueryParam("subject"); subjectID != "" {
		n, err = api.ledger.ClearStudentAttendanceForSubject(ctx.Request().Context(), actor, ctx.Param("id"), subjectID)
	} else {
		n, err = api.ledger.ClearStudentAttendance(ctx.Request().Context(), actor, ctx.Param("id"))
	}
	if err != nil {
		return errors.Wrap(err, "clearing student attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"cleared": n})
}

func (api *ledgerApi) clearTeacherAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.ledger.ClearTeacherAttendance(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "clearing teacher attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"cleared": n})
}

func (api *ledgerApi) clearSubjectAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.ledger.ClearAttendanceForSubject(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "clearing subject attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"cleared": n})
}

func (api *ledgerApi) clearSchoolAttendance(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.ledger.ClearAttendanceForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "clearing school attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"cleared": n})
}
