package customers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// Handler handles admin customer endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a customer handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid customer id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /admin/customers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list customers", zap.Error(err))
		response.Internal(c, "failed to list customers")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/customers.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cust, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err, "failed to create customer")
		return
	}
	response.Created(c, cust)
}

// Update handles PUT /admin/customers/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cust, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, err, "failed to update customer")
		return
	}
	response.OK(c, cust)
}

// Toggle handles POST /admin/customers/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cust, err := h.svc.Toggle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to update customer")
		return
	}
	response.OK(c, cust)
}

// Delete handles DELETE /admin/customers/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete customer")
		return
	}
	response.NoContent(c)
}
