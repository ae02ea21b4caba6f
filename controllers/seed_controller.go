package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/models"
	"github.com/yashrajoria/catalog-seeder/services"
)

// Runner is the orchestrator surface the admin API drives.
type Runner interface {
	RunIfNeeded(ctx context.Context, opts services.RunOptions) *services.RunResult
	ResetMarkers(ctx context.Context) error
	State() services.State
	LastResult() *services.RunResult
}

// Settings reads and changes operator settings.
type Settings interface {
	Markers(ctx context.Context) (models.MarkerState, error)
	Apply(ctx context.Context, u services.SettingsUpdate) (models.MarkerState, error)
}

// RunHistory lists past runs.
type RunHistory interface {
	List(ctx context.Context, page, limit int) ([]models.RunRecord, int64, error)
}

// SeedController handles the seed admin endpoints. History may be nil.
type SeedController struct {
	runner   Runner
	importer services.Importer
	settings Settings
	history  RunHistory
}

func NewSeedController(runner Runner, importer services.Importer, settings Settings, history RunHistory) *SeedController {
	return &SeedController{runner: runner, importer: importer, settings: settings, history: history}
}

type dryRunRequest struct {
	PruneMissing      bool   `json:"prune_missing"`
	ChecksumNamespace string `json:"checksum_namespace"`
}

type runRequest struct {
	Force             bool   `json:"force"`
	Overwrite         *bool  `json:"overwrite"`
	PruneMissing      bool   `json:"prune_missing"`
	ChecksumNamespace string `json:"checksum_namespace"`
}

// bindOptional binds a JSON body when one was sent.
func bindOptional(ctx *gin.Context, dst interface{}) error {
	if ctx.Request.ContentLength == 0 {
		return nil
	}
	if err := ctx.ShouldBindJSON(dst); err != nil {
		return apperrors.Wrapf(apperrors.ErrBadRequest, err, "Invalid request")
	}
	return nil
}

// Health handles GET /health
func (sc *SeedController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"state":            sc.runner.State(),
		"store_configured": sc.importer.Configured(),
	})
}

// GetMarkers handles GET /api/v1/seed/markers
func (sc *SeedController) GetMarkers(ctx *gin.Context) {
	state, err := sc.settings.Markers(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}

	body := gin.H{"markers": state, "state": sc.runner.State()}
	if last := sc.runner.LastResult(); last != nil {
		body["last_run"] = runBody(last)
	}
	ctx.JSON(http.StatusOK, body)
}

// UpdateSettings handles PUT /api/v1/seed/settings
func (sc *SeedController) UpdateSettings(ctx *gin.Context) {
	var req services.SettingsUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(apperrors.Wrapf(apperrors.ErrBadRequest, err, "Invalid request"))
		return
	}

	state, err := sc.settings.Apply(ctx.Request.Context(), req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"markers": state})
}

// DryRun handles POST /api/v1/seed/dry-run
func (sc *SeedController) DryRun(ctx *gin.Context) {
	var req dryRunRequest
	if err := bindOptional(ctx, &req); err != nil {
		_ = ctx.Error(err)
		return
	}

	report, _, err := sc.importer.ImportSmart(ctx.Request.Context(), services.ImportRequest{
		DryRun:            true,
		PruneMissing:      req.PruneMissing,
		ChecksumNamespace: req.ChecksumNamespace,
	})
	if err != nil {
		_ = ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"report":        report,
		"summary":       report.Summary(),
		"nothing_to_do": report.NothingToDo(),
	})
}

// Run handles POST /api/v1/seed/run
func (sc *SeedController) Run(ctx *gin.Context) {
	var req runRequest
	if err := bindOptional(ctx, &req); err != nil {
		_ = ctx.Error(err)
		return
	}

	res := sc.runner.RunIfNeeded(ctx.Request.Context(), services.RunOptions{
		Force:             req.Force,
		Overwrite:         req.Overwrite,
		PruneMissing:      req.PruneMissing,
		ChecksumNamespace: req.ChecksumNamespace,
		Trigger:           "api",
	})
	if res.Err != nil {
		_ = ctx.Error(res.Err)
		return
	}
	ctx.JSON(http.StatusOK, runBody(res))
}

// Reset handles POST /api/v1/seed/reset
func (sc *SeedController) Reset(ctx *gin.Context) {
	if err := sc.runner.ResetMarkers(ctx.Request.Context()); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Seed markers reset"})
}

// ListRuns handles GET /api/v1/seed/runs
func (sc *SeedController) ListRuns(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	if sc.history == nil {
		ctx.JSON(http.StatusOK, gin.H{"runs": []models.RunRecord{}, "total": 0, "history_enabled": false})
		return
	}

	runs, total, err := sc.history.List(ctx.Request.Context(), page, limit)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"runs":            runs,
		"total":           total,
		"page":            page,
		"limit":           limit,
		"history_enabled": true,
	})
}

func runBody(res *services.RunResult) gin.H {
	body := gin.H{
		"run_id":        res.RunID,
		"state":         res.State,
		"path":          res.Path,
		"nothing_to_do": res.NothingToDo,
		"elapsed_ms":    res.Elapsed.Milliseconds(),
	}
	if res.Report != nil {
		body["report"] = res.Report
	}
	if res.Outcome != nil {
		body["outcome"] = res.Outcome
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	return body
}

// parsePaginationParams extracts and validates page/limit query params.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	page, limit := 1, 20
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
