package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/upstream"
	"github.com/kpidash/backend/internal/interfaces/http/middleware"
)

// ErrMemberAPIDisabled is returned when no upstream API is configured,
// as when reports are served from local files.
var ErrMemberAPIDisabled = errors.New("member API is not configured")

// MemberGateway performs member mutations on the upstream API
type MemberGateway interface {
	SyncMembers(ctx context.Context) (json.RawMessage, error)
	RefundMembership(ctx context.Context, req upstream.RefundRequest) (json.RawMessage, error)
}

// MemberHandler proxies member actions to the upstream API
type MemberHandler struct {
	BaseHandler
	gateway MemberGateway
}

// NewMemberHandler creates a new MemberHandler. A nil gateway disables
// the endpoints.
func NewMemberHandler(gateway MemberGateway) *MemberHandler {
	return &MemberHandler{gateway: gateway}
}

// Sync asks the upstream API to resynchronize members
func (h *MemberHandler) Sync(c *gin.Context) {
	if h.gateway == nil {
		h.HandleError(c, ErrMemberAPIDisabled)
		return
	}
	result, err := h.gateway.SyncMembers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Members synchronized")
	h.Success(c, result)
}

// Refund refunds a membership on the upstream API
func (h *MemberHandler) Refund(c *gin.Context) {
	if h.gateway == nil {
		h.HandleError(c, ErrMemberAPIDisabled)
		return
	}
	var req upstream.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	result, err := h.gateway.RefundMembership(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Membership refunded",
		zap.Int64("membership_id", req.MembershipID),
		zap.Int64("member_id", req.MemberID),
	)
	h.Success(c, result)
}
