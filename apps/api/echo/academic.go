package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/cascade"
)

type academicApi struct {
	svc     *academic.Service
	cascade *cascade.Engine
	tokens  *TokenIssuer
}

func registerAcademicAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	tokens *TokenIssuer,
	svc *academic.Service,
	engine *cascade.Engine,
) {
	api := academicApi{svc: svc, cascade: engine, tokens: tokens}
	admin := adminMiddleware()

	// un-authed endpoints
	g.POST("/teachers/login", api.loginTeacher)
	g.POST("/students/login", api.loginStudent)

	// classes
	g.POST("/classes", api.createClass, auth, admin)
	g.GET("/schools/:id/classes", api.queryClasses, auth)
	g.DELETE("/schools/:id/classes", api.destroySchoolClasses, auth, admin)
	g.GET("/classes/:id", api.retrieveClass, auth)
	g.GET("/classes/:id/students", api.queryClassStudents, auth)
	g.DELETE("/classes/:id/students", api.destroyClassStudents, auth, admin)
	g.GET("/classes/:id/subjects", api.queryClassSubjects, auth)
	g.DELETE("/classes/:id/subjects", api.destroyClassSubjects, auth, admin)
	g.GET("/classes/:id/free-subjects", api.queryFreeSubjects, auth, admin)
	g.DELETE("/classes/:id", api.destroyClass, auth, admin)

	// subjects
	g.POST("/subjects", api.createSubjects, auth, admin)
	g.GET("/schools/:id/subjects", api.querySubjects, auth)
	g.DELETE("/schools/:id/subjects", api.destroySchoolSubjects, auth, admin)
	g.GET("/subjects/:id", api.retrieveSubject, auth)
	g.DELETE("/subjects/:id", api.destroySubject, auth, admin)

	// teachers
	g.POST("/teachers", api.createTeacher, auth, admin)
	g.GET("/schools/:id/teachers", api.queryTeachers, auth)
	g.DELETE("/schools/:id/teachers", api.destroySchoolTeachers, auth, admin)
	g.GET("/teachers/:id", api.retrieveTeacher, auth)
	g.PUT("/teachers/:id/subject", api.assignTeacherSubject, auth, admin)
	g.DELETE("/teachers/:id", api.destroyTeacher, auth, admin)

	// students
	g.POST("/students", api.createStudent, auth, admin)
	g.GET("/schools/:id/students", api.queryStudents, auth)
	g.DELETE("/schools/:id/students", api.destroySchoolStudents, auth, admin)
	g.GET("/students/:id", api.retrieveStudent, auth)
	g.PUT("/students/:id", api.updateStudent, auth, admin)
	g.DELETE("/students/:id", api.destroyStudent, auth, admin)
}

// Logins

func (api *academicApi) loginTeacher(ctx echo.Context) error {
	var data academic.TeacherLogin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherLogin")
	}

	teacher, err := api.svc.AuthenticateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating teacher")
	}
	token, err := api.tokens.GenerateToken(teacher.Actor())
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: teacher})
}

func (api *academicApi) loginStudent(ctx echo.Context) error {
	var data academic.StudentLogin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentLogin")
	}

	student, err := api.svc.AuthenticateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "authenticating student")
	}
	token, err := api.tokens.GenerateToken(student.Actor())
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Profile: student})
}

// Classes

func (api *academicApi) createClass(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *academicApi) queryClasses(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []academic.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicApi) retrieveClass(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	class, err := api.svc.GetClass(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *academicApi) queryClassStudents(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	students, err := api.svc.ClassStudents(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class students")
	}
	if students == nil {
		students = []academic.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *academicApi) queryClassSubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	subjects, err := api.svc.ClassSubjects(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class subjects")
	}
	if subjects == nil {
		subjects = []academic.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) queryFreeSubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	subjects, err := api.svc.FreeSubjects(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying free subjects")
	}
	if subjects == nil {
		subjects = []academic.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) destroyClass(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteClass(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *academicApi) destroySchoolClasses(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteAllClassesForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting school classes")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// Subjects

func (api *academicApi) createSubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.NewSubjects
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubjects")
	}

	subjects, err := api.svc.CreateSubjects(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating subjects")
	}
	return ctx.JSON(http.StatusCreated, subjects)
}

func (api *academicApi) querySubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []academic.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	subject, err := api.svc.GetSubject(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *academicApi) destroySubject(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteSubject(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *academicApi) destroySchoolSubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteSubjectsForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting school subjects")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *academicApi) destroyClassSubjects(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteSubjectsForClass(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting class subjects")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// Teachers

func (api *academicApi) createTeacher(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.NewTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}

	teacher, err := api.svc.RegisterTeacher(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, teacher)
}

func (api *academicApi) queryTeachers(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []academic.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *academicApi) retrieveTeacher(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	teacher, err := api.svc.GetTeacher(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving teacher")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *academicApi) assignTeacherSubject(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.AssignSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignSubject")
	}

	teacher, err := api.svc.AssignTeacherSubject(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning subject")
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *academicApi) destroyTeacher(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteTeacher(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *academicApi) destroySchoolTeachers(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	sum, err := api.cascade.DeleteTeachersForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting school teachers")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// Students

func (api *academicApi) createStudent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	student, err := api.svc.RegisterStudent(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *academicApi) queryStudents(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	students, err := api.svc.QueryStudents(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []academic.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *academicApi) retrieveStudent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	student, err := api.svc.GetStudent(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *academicApi) updateStudent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data academic.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	student, err := api.svc.UpdateStudent(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *academicApi) destroyStudent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	student, err := api.svc.DeleteStudent(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *academicApi) destroySchoolStudents(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.DeleteStudentsForSchool(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting school students")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

func (api *academicApi) destroyClassStudents(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.DeleteStudentsForClass(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting class students")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}
