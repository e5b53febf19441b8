package jobs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/sheetsync/internal/scheduler"
	"github.com/gridbase/sheetsync/internal/server/handlers/api"
	"github.com/gridbase/sheetsync/internal/store"
)

type Handler struct {
	jobs  *store.JobRepo
	sched *scheduler.Scheduler
}

func New(jobs *store.JobRepo, sched *scheduler.Scheduler) *Handler {
	return &Handler{jobs: jobs, sched: sched}
}

func (h *Handler) List(ctx *gin.Context) {
	jobs, err := h.jobs.List(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) Create(ctx *gin.Context) {
	var req JobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeJobInvalid, err)
		return
	}
	if _, err := scheduler.Parse(req.Schedule); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeJobInvalid, err)
		return
	}

	existing, err := h.jobs.GetByName(ctx.Request.Context(), req.Name)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if existing != nil {
		api.AbortWithError(ctx, http.StatusConflict, api.CodeJobConflict,
			errors.New("cron job already exists: "+req.Name))
		return
	}

	job := &store.CronJob{
		Name:      req.Name,
		TableName: req.TableName,
		Folder:    req.Folder,
		Schedule:  req.Schedule,
		Enabled:   req.Enabled == nil || *req.Enabled,
	}
	if err := h.jobs.Create(ctx.Request.Context(), job); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	h.sched.Reload()
	ctx.PureJSON(http.StatusCreated, job)
}

func (h *Handler) Get(ctx *gin.Context) {
	job, err := h.jobs.GetByName(ctx.Request.Context(), ctx.Param("name"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if job == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeJobNotFound,
			errors.New("no cron job named "+ctx.Param("name")))
		return
	}
	ctx.PureJSON(http.StatusOK, job)
}

func (h *Handler) Delete(ctx *gin.Context) {
	job, err := h.jobs.GetByName(ctx.Request.Context(), ctx.Param("name"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if job == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeJobNotFound,
			errors.New("no cron job named "+ctx.Param("name")))
		return
	}
	if err := h.jobs.Delete(ctx.Request.Context(), job.ID); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Run triggers the job immediately, outside its schedule.
func (h *Handler) Run(ctx *gin.Context) {
	res, err := h.sched.RunNow(ctx.Request.Context(), ctx.Param("name"))
	if err != nil {
		abortWithJobError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, res)
}

// Stop force-fails a running job so it no longer blocks future claims.
func (h *Handler) Stop(ctx *gin.Context) {
	if err := h.sched.Stop(ctx.Request.Context(), ctx.Param("name")); err != nil {
		abortWithJobError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) Enable(ctx *gin.Context) {
	if err := h.sched.Enable(ctx.Request.Context(), ctx.Param("name")); err != nil {
		abortWithJobError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) Disable(ctx *gin.Context) {
	if err := h.sched.Disable(ctx.Request.Context(), ctx.Param("name")); err != nil {
		abortWithJobError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ClearStuck reclaims jobs stuck in running past the threshold.
func (h *Handler) ClearStuck(ctx *gin.Context) {
	n, err := h.sched.ClearStuck(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	ctx.PureJSON(http.StatusOK, gin.H{"cleared": n})
}

func (h *Handler) Reload(ctx *gin.Context) {
	h.sched.Reload()
	ctx.Status(http.StatusNoContent)
}

func abortWithJobError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeJobNotFound, err)
	case errors.Is(err, scheduler.ErrJobRunning):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeJobRunning, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
