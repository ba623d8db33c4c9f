package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/task"
)

type taskApi struct {
	srv      *Server
	svc      *task.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := taskApi{
		srv:      srv,
		svc:      srv.deps.TaskSvc,
		validate: srv.deps.Validate,
	}

	teacher := teacherMiddleware()
	g.GET("/students/collaborations", api.queryCollaborations, jwt, teacher)
	g.GET("/class-overview", api.classOverview, jwt, teacher)

	tg := g.Group("/teacher/tasks", jwt, teacher)
	tg.POST("", api.create)
	tg.GET("", api.queryTeacherTasks)
	tg.PUT("/:id/score", api.score)

	sg := g.Group("/student", jwt, studentMiddleware())
	sg.GET("/tasks", api.queryStudentTasks)
	sg.PUT("/tasks/:id/answer", api.answer)
	sg.GET("/stats", api.stats)

	g.GET("/tasks/:id", api.retrieve, jwt)
}

// Teacher handlers

func (api *taskApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data task.NewTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) queryTeacherTasks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	tasks, err := api.svc.TeacherTasks(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying teacher tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) score(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data task.ScoreTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Score(ctx.Request().Context(), claims.Subject, ctx.Param("id"), *data.Score)
	if err != nil {
		return errors.Wrap(err, "scoring task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) queryCollaborations(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	collabs, err := api.svc.CollaborationHistory(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying collaborations")
	}
	return ctx.JSON(http.StatusOK, collabs)
}

func (api *taskApi) classOverview(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	overview, err := api.svc.ClassOverview(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "building class overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

// Student handlers

func (api *taskApi) queryStudentTasks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	status := task.Status(core.CleanString(ctx.QueryParam("status"), true /* lower */))
	tasks, err := api.svc.StudentTasks(ctx.Request().Context(), claims.Subject, status)
	if err != nil {
		return errors.Wrap(err, "querying student tasks")
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) answer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data task.SubmitAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.SubmitAnswer(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data.Answer)
	if err != nil {
		return errors.Wrap(err, "submitting answer")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) stats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	stats, err := api.svc.StudentStats(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Shared handlers

func (api *taskApi) retrieve(ctx echo.Context) error {
	usr, err := api.srv.getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	info, err := api.svc.Retrieve(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving task")
	}
	return ctx.JSON(http.StatusOK, info)
}
