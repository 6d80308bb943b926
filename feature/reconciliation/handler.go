package reconciliation

import (
	"errors"
	"strconv"
	"time"

	"lockcode-manager/core/logger"
	"lockcode-manager/core/models"
	"lockcode-manager/core/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes the engine's trigger surface.
type Handler struct {
	runner *Runner
	retry  *RetryWorker
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(runner *Runner, retry *RetryWorker, st *store.Store, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, retry: retry, store: st, logger: logger, now: time.Now}
}

// RegisterRoutes registers the run and failure routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	runs := app.Group("/runs")
	runs.Post("/", h.HandleStartRun)
	runs.Get("/", h.HandleListRuns)
	runs.Get("/latest", h.HandleLatestRun)
	runs.Get("/:id", h.HandleGetRun)
	runs.Post("/:id/kill", h.HandleKillRun)

	failures := app.Group("/failures")
	failures.Get("/", h.HandleListFailures)
	failures.Post("/retry", h.HandleRetry)
}

// RunSummary is a run with the ledger entries it recorded.
type RunSummary struct {
	Run       models.Run             `json:"run"`
	Successes []models.SuccessRecord `json:"successes"`
	Failures  []models.FailureRecord `json:"failures"`
}

func (h *Handler) summary(c *fiber.Ctx, run *models.Run) error {
	failures, err := h.store.ListFailures(c.Context(), store.FailureFilter{RunID: &run.ID})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	successes, err := h.store.ListSuccesses(c.Context(), run.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if failures == nil {
		failures = []models.FailureRecord{}
	}
	if successes == nil {
		successes = []models.SuccessRecord{}
	}
	return c.JSON(RunSummary{Run: *run, Successes: successes, Failures: failures})
}

func runID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// HandleStartRun starts a run in the background.
// @Summary Start Reconciliation Run
// @Description Starts a reconciliation run and returns immediately. Refuses when a run is already in progress.
// @Tags runs
// @Produce json
// @Success 202 {object} map[string]interface{} "Run started"
// @Failure 409 {object} map[string]interface{} "Run already in progress"
// @Router /runs [post]
func (h *Handler) HandleStartRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	run, err := h.runner.Start(c.UserContext())
	if errors.Is(err, store.ErrRunInProgress) {
		body := fiber.Map{"error": err.Error()}
		if current, err := h.store.RunningRun(c.Context()); err == nil {
			body["run_id"] = current.ID
		}
		return c.Status(fiber.StatusConflict).JSON(body)
	}
	if err != nil {
		l.Error("Failed to start run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Run started from trigger", zap.Uint("run_id", run.ID))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": run.ID,
		"status": run.Status,
	})
}

// HandleListRuns lists recent runs.
// @Summary List Runs
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs"
// @Success 200 {array} models.Run
// @Router /runs [get]
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	runs, err := h.store.ListRuns(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(runs)
}

// HandleLatestRun returns the most recent run with its successes and failures.
// @Summary Latest Run
// @Tags runs
// @Produce json
// @Success 200 {object} RunSummary
// @Failure 404 {object} map[string]string "No runs yet"
// @Router /runs/latest [get]
func (h *Handler) HandleLatestRun(c *fiber.Ctx) error {
	run, err := h.store.LatestRun(c.Context())
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no runs yet"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return h.summary(c, run)
}

// HandleGetRun returns one run with its successes and failures.
// @Summary Get Run
// @Tags runs
// @Produce json
// @Param id path int true "Run ID"
// @Success 200 {object} RunSummary
// @Failure 404 {object} map[string]string "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	id, ok := runID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}
	run, err := h.store.GetRun(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return h.summary(c, run)
}

// HandleKillRun marks a running run as killed. In-flight device calls finish;
// the run stops before its next reservation.
// @Summary Kill Run
// @Tags runs
// @Produce json
// @Param id path int true "Run ID"
// @Success 200 {object} map[string]interface{} "Run killed"
// @Failure 404 {object} map[string]string "Run not found"
// @Failure 409 {object} map[string]string "Run is not running"
// @Router /runs/{id}/kill [post]
func (h *Handler) HandleKillRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	id, ok := runID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}

	err := h.store.KillRun(c.Context(), id, h.now().UTC(), "killed by operator")
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	case errors.Is(err, store.ErrRunNotRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Failed to kill run", zap.Uint("run_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Warn("Run killed by operator", zap.Uint("run_id", id))
	return c.JSON(fiber.Map{"run_id": id, "status": models.RunStatusKilled})
}

// HandleListFailures lists failure records.
// @Summary List Failures
// @Tags failures
// @Produce json
// @Param status query string false "unresolved (default), resolved or all"
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} models.FailureRecord
// @Router /failures [get]
func (h *Handler) HandleListFailures(c *fiber.Ctx) error {
	filter := store.FailureFilter{Limit: c.QueryInt("limit", 0)}
	switch c.Query("status", "unresolved") {
	case "unresolved":
		v := false
		filter.Resolved = &v
	case "resolved":
		v := true
		filter.Resolved = &v
	case "all":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be unresolved, resolved or all"})
	}

	failures, err := h.store.ListFailures(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if failures == nil {
		failures = []models.FailureRecord{}
	}
	return c.JSON(failures)
}

// HandleRetry retries failure records.
// @Summary Retry Failures
// @Description Retries the given failure ids, or every unresolved failure when none are given.
// @Tags failures
// @Accept json
// @Produce json
// @Param selection body Selection false "Records to retry"
// @Success 200 {object} Summary
// @Router /failures/retry [post]
func (h *Handler) HandleRetry(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var sel Selection
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&sel); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
		}
	}

	summary, err := h.retry.RetryOutstanding(c.UserContext(), sel)
	if err != nil {
		l.Error("Retry failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}
