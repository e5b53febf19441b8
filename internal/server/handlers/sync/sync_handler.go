package sync

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridbase/sheetsync/internal/dialect"
	"github.com/gridbase/sheetsync/internal/engine"
	"github.com/gridbase/sheetsync/internal/server/handlers/api"
	"github.com/gridbase/sheetsync/internal/store"
)

type Handler struct {
	engine  *engine.Engine
	configs *store.ConfigRepo
	logs    *store.LogRepo
	tracked *store.TrackedRepo
}

func New(e *engine.Engine, configs *store.ConfigRepo, logs *store.LogRepo, tracked *store.TrackedRepo) *Handler {
	return &Handler{engine: e, configs: configs, logs: logs, tracked: tracked}
}

// Run triggers a synchronization cycle for one table.
func (h *Handler) Run(ctx *gin.Context) {
	var req RunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	mode, err := engine.ParseMode(req.Mode)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	res, err := h.engine.Run(ctx.Request.Context(), req.TableName, mode)
	if err != nil {
		abortWithSyncError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, res)
}

// abortWithSyncError maps engine failures onto API codes.
func abortWithSyncError(ctx *gin.Context, err error) {
	var fetchErr *engine.SourceFetchError
	var storeErr *engine.StoreWriteError
	switch {
	case errors.Is(err, engine.ErrConfigNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeConfigNotFound, err)
	case errors.Is(err, engine.ErrNoData):
		api.AbortWithError(ctx, http.StatusUnprocessableEntity, api.CodeNoData, err)
	case errors.As(err, &fetchErr):
		api.AbortWithError(ctx, http.StatusBadGateway, api.CodeSourceFetch, err)
	case errors.As(err, &storeErr):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}

func (h *Handler) ListConfigs(ctx *gin.Context) {
	configs, err := h.configs.List(ctx.Request.Context())
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, gin.H{"configs": configs})
}

func (h *Handler) GetConfig(ctx *gin.Context) {
	table := ctx.Param("table")
	cfg, err := h.configs.GetByTable(ctx.Request.Context(), table)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if cfg == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeConfigNotFound,
			errors.New("no sync config for table "+table))
		return
	}
	ctx.PureJSON(http.StatusOK, cfg)
}

// PutConfig creates or replaces the sync config for a table. The table name
// is validated up front so a bad identifier never reaches SQL.
func (h *Handler) PutConfig(ctx *gin.Context) {
	table := ctx.Param("table")
	if err := dialect.ValidateIdent(table); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeConfigInvalid, err)
		return
	}

	var req ConfigRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeConfigInvalid, err)
		return
	}

	cfg := &store.SyncConfig{
		TableName:     table,
		SpreadsheetID: req.SpreadsheetID,
		SheetName:     req.SheetName,
		Folder:        req.Folder,
		StartRow:      req.StartRow,
		HasHeader:     req.HasHeader == nil || *req.HasHeader,
		Incremental:   req.Incremental,
	}
	if cfg.StartRow <= 0 {
		cfg.StartRow = 1
	}

	if err := h.configs.Upsert(ctx.Request.Context(), cfg); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	ctx.PureJSON(http.StatusOK, cfg)
}

// DeleteConfig removes the binding and its row fingerprints. The target
// table itself is left alone.
func (h *Handler) DeleteConfig(ctx *gin.Context) {
	table := ctx.Param("table")
	if err := h.configs.Delete(ctx.Request.Context(), table); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	if err := h.tracked.DeleteTable(ctx.Request.Context(), table); err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeStoreWrite, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ListLogs returns recent sync runs, most recent first. Filterable by table.
func (h *Handler) ListLogs(ctx *gin.Context) {
	table := ctx.Query("table")
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
				errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	logs, err := h.logs.Recent(ctx.Request.Context(), table, limit)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) GetLog(ctx *gin.Context) {
	entry, err := h.logs.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if entry == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeSyncLogNotFound,
			errors.New("no sync log entry "+ctx.Param("id")))
		return
	}
	ctx.PureJSON(http.StatusOK, entry)
}
