package schedules

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/middleware"
	"github.com/aura-webinar/seminar-portal/internal/models"
	"github.com/aura-webinar/seminar-portal/internal/realtime"
	"github.com/aura-webinar/seminar-portal/pkg/response"
	"github.com/aura-webinar/seminar-portal/pkg/storage"
)

// AccessRecorder writes one viewer_access_logs row per watch page load.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, scheduleID uuid.UUID, customerID string) error
}

// ImageStore uploads waiting/ended screen images. *storage.S3 implements it.
type ImageStore interface {
	UploadImage(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteImage(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

// StatusRequest is the body for POST /admin/schedules/:id/status.
type StatusRequest struct {
	Status models.ScheduleStatus `json:"status" binding:"required"`
}

// TestLiveRequest is the body for POST /admin/schedules/:id/test-live.
type TestLiveRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// MeetingRequest is the body for PUT /admin/schedules/:id/meeting.
type MeetingRequest struct {
	MeetingNumber   *string `json:"meeting_number"`
	MeetingPassword *string `json:"meeting_password"`
}

// WatchView is what GET /watch/:slug returns.
type WatchView struct {
	Schedule    models.SchedulePublic `json:"schedule"`
	TestMode    bool                  `json:"test_mode"`
	StatusTopic string                `json:"status_topic"`
	ChatTopic   string                `json:"chat_topic"`
}

// Handler handles schedule HTTP endpoints.
type Handler struct {
	store      Store
	controller *Controller
	access     AccessRecorder
	images     ImageStore
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a schedule handler. images may be nil when S3 is not configured.
func NewHandler(store Store, controller *Controller, access AccessRecorder, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, controller: controller, access: access, images: images, logger: logger, now: time.Now}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid schedule id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /admin/schedules.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list schedules", zap.Error(err))
		response.Internal(c, "failed to list schedules")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/schedules.
func (h *Handler) Create(c *gin.Context) {
	var in InfoInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := in.Normalize(); err != nil {
		response.Error(c, err, "invalid schedule")
		return
	}
	s := NewSchedule(in, h.now())
	if err := h.store.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create schedule", zap.Error(err))
		response.Internal(c, "failed to create schedule")
		return
	}
	response.Created(c, s)
}

// Get handles GET /admin/schedules/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load schedule")
		return
	}
	response.OK(c, s)
}

// Update handles PUT /admin/schedules/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in InfoInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := in.Normalize(); err != nil {
		response.Error(c, err, "invalid schedule")
		return
	}
	s, err := h.store.UpdateInfo(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, err, "failed to update schedule")
		return
	}
	response.OK(c, s)
}

// UpdateMeeting handles PUT /admin/schedules/:id/meeting.
func (h *Handler) UpdateMeeting(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.store.UpdateMeeting(c.Request.Context(), id, req.MeetingNumber, req.MeetingPassword)
	if err != nil {
		response.Error(c, err, "failed to update meeting settings")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /admin/schedules/:id. Dependent rows go first.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.Purge(c.Request.Context(), id); err != nil {
		h.logger.Warn("purge schedule", zap.String("schedule_id", id.String()), zap.Error(err))
		response.Error(c, err, "failed to delete schedule; retry to remove remaining rows")
		return
	}
	response.NoContent(c)
}

// UploadImage handles POST /admin/schedules/:id/images/:kind (multipart field "file").
func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	kind := storage.ImageKind(c.Param("kind"))
	if !kind.Valid() {
		response.BadRequest(c, "kind must be waiting or ended")
		return
	}
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, "image exceeds 5MB")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, fh.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	if _, ok := storage.AllowedImageTypes[contentType]; !ok {
		contentType = storage.ContentTypeForFilename(fh.Filename)
	}

	ctx := c.Request.Context()
	current, err := h.store.GetByID(ctx, id)
	if err != nil {
		response.Error(c, err, "failed to load schedule")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	key := storage.ImageKey(id.String(), kind, fh.Filename)
	url, err := h.images.UploadImage(ctx, key, contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("upload image", zap.String("schedule_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}
	updated, err := h.store.UpdateImage(ctx, id, kind, url)
	if err != nil {
		response.Error(c, err, "failed to save image")
		return
	}

	previous := current.WaitingImageURL
	if kind == storage.ImageEnded {
		previous = current.EndedImageURL
	}
	if oldKey := h.images.KeyFromURL(previous); oldKey != "" && oldKey != key {
		if err := h.images.DeleteImage(ctx, oldKey); err != nil {
			h.logger.Warn("delete previous image", zap.String("key", oldKey), zap.Error(err))
		}
	}
	response.OK(c, updated)
}

// SetStatus handles POST /admin/schedules/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Viewer(c)
	res, err := h.controller.Transition(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		response.Error(c, err, "status change did not take effect")
		return
	}
	response.OK(c, res)
}

// SetTestLive handles POST /admin/schedules/:id/test-live.
func (h *Handler) SetTestLive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req TestLiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.Viewer(c)
	res, err := h.controller.SetTestLive(c.Request.Context(), actor, id, *req.Enabled)
	if err != nil {
		response.Error(c, err, "test live change did not take effect")
		return
	}
	response.OK(c, res)
}

// Dashboard handles GET /admin/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.store.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, d)
}

// Watch handles GET /watch/:slug. ?mode=test is honoured while test live is on, or for admins.
func (h *Handler) Watch(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.store.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to load schedule")
		return
	}
	viewer, _ := middleware.Viewer(c)
	if viewer.Kind == models.KindCustomer && h.access != nil {
		if err := h.access.RecordAccess(ctx, s.ID, viewer.ID); err != nil {
			h.logger.Warn("record access", zap.String("schedule_id", s.ID.String()), zap.Error(err))
		}
	}
	wantTest := c.Query("mode") == "test"
	response.OK(c, WatchView{
		Schedule:    s.ToPublic(),
		TestMode:    wantTest && (s.IsTestLive || viewer.IsAdmin()),
		StatusTopic: realtime.StatusTopic(s.Slug),
		ChatTopic:   realtime.ChatTopic(s.Slug),
	})
}

// SlugLookup finds a schedule by slug.
type SlugLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Schedule, error)
}

// AuthorizeTopic allows a channel subscription when the topic names an existing schedule.
func AuthorizeTopic(schedules SlugLookup) realtime.TopicAuthorizer {
	return func(ctx context.Context, topic string, _ models.Viewer) error {
		slug, _, ok := realtime.ParseTopic(topic)
		if !ok {
			return models.ErrNotFound
		}
		_, err := schedules.GetBySlug(ctx, slug)
		return err
	}
}
