package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"remindd/internal/reminder"
	rtsup "remindd/internal/runtime/supervisor"
	logx "remindd/pkg/logx"
)

const defaultFiresLimit = 50

type Handler struct {
	svc     Coordinator
	history History
	rt      Runtime
	log     logx.Logger
}

// NewHandler builds the request handlers. history and rt may be nil.
func NewHandler(svc Coordinator, history History, rt Runtime, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{svc: svc, history: history, rt: rt, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	groups := r.Group("/groups")
	groups.GET("", h.ListGroups)
	groups.POST("", h.CreateGroup)
	groups.DELETE("/:id", h.DeleteGroup)
	groups.GET("/:id/reminders", h.ListGroupReminders)

	rems := r.Group("/reminders")
	rems.GET("", h.ListReminders)
	rems.POST("", h.CreateReminder)
	rems.GET("/:id", h.GetReminder)
	rems.PATCH("/:id", h.UpdateReminder)
	rems.DELETE("/:id", h.DeleteReminder)
	rems.POST("/:id/pause", h.transition(Coordinator.Pause, "paused"))
	rems.POST("/:id/resume", h.transition(Coordinator.Resume, "resumed"))
	rems.POST("/:id/cancel", h.transition(Coordinator.Cancel, "cancelled"))
	rems.GET("/:id/fires", h.ListFires)

	r.GET("/jobs", h.ListJobs)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/tasks", h.ListTasks)
}

// ListTasks reports the daemon's background loops.
func (h *Handler) ListTasks(c *gin.Context) {
	var tasks []rtsup.TaskState
	if h.rt != nil {
		tasks = h.rt.Tasks()
	}
	c.JSON(http.StatusOK, list(tasks))
}

func (h *Handler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, list(h.svc.Groups()))
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	g, err := h.svc.CreateGroup(c.Request.Context(), req.Name, req.Color)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.svc.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListGroupReminders(c *gin.Context) {
	c.JSON(http.StatusOK, list(h.views(h.svc.RemindersByGroup(c.Param("id")))))
}

func (h *Handler) ListReminders(c *gin.Context) {
	c.JSON(http.StatusOK, list(h.views(h.svc.Reminders())))
}

func (h *Handler) GetReminder(c *gin.Context) {
	r, err := h.svc.Reminder(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(r))
}

func (h *Handler) CreateReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	r, err := h.svc.CreateReminder(c.Request.Context(), req.draft())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(r))
}

func (h *Handler) UpdateReminder(c *gin.Context) {
	var req UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	r, err := h.svc.UpdateReminder(c.Request.Context(), c.Param("id"), req.patch())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(r))
}

// DeleteReminder soft-deletes; ?purge=true removes the record.
func (h *Handler) DeleteReminder(c *gin.Context) {
	purge, _ := strconv.ParseBool(c.DefaultQuery("purge", "false"))
	op := h.svc.Delete
	if purge {
		op = h.svc.Purge
	}
	if err := op(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListFires(c *gin.Context) {
	limit := defaultFiresLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = n
	}
	fires, err := h.svc.Fires(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(fires))
}

func (h *Handler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, list(h.svc.Jobs()))
}

func (h *Handler) ListNotifications(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, list[any](nil))
		return
	}
	c.JSON(http.StatusOK, list(h.history.Snapshot()))
}

func (h *Handler) transition(op func(Coordinator, context.Context, string) error, verb string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := op(h.svc, c.Request.Context(), id); err != nil {
			h.handleError(c, err)
			return
		}
		r, err := h.svc.Reminder(id)
		if err != nil {
			h.handleError(c, err)
			return
		}
		h.log.Debug("reminder "+verb, logx.String("id", id))
		c.JSON(http.StatusOK, h.view(r))
	}
}

func (h *Handler) view(r reminder.Reminder) ReminderResponse {
	return ReminderResponse{Reminder: r, Status: r.Status().String(), Scheduled: h.svc.HasJob(r.ID)}
}

func (h *Handler) views(rs []reminder.Reminder) []ReminderResponse {
	out := make([]ReminderResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, h.view(r))
	}
	return out
}
