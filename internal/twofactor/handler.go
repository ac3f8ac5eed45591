package twofactor

import (
	stderrors "errors"
	"io"

	"github.com/ahwlsqja/chainauth/internal/common/errors"
	"github.com/ahwlsqja/chainauth/internal/common/middleware"
	"github.com/ahwlsqja/chainauth/internal/proof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the wallet second factor
type Handler struct {
	service  *Service
	recorder proof.Recorder
	logger   *zap.Logger
}

// NewHandler creates a new two-factor handler.
// recorder receives every successful verification.
func NewHandler(service *Service, recorder proof.Recorder, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes registers auth routes on the router group.
// guards run before every route, e.g. middleware.PrimarySession.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	auth := rg.Group("/auth", guards...)
	{
		auth.POST("/challenge", h.IssueChallenge)
		auth.GET("/challenge", h.GetChallenge)
		auth.POST("/verify", h.VerifyChallenge)
	}
}

// IssueChallenge godoc
// @Summary Issue a wallet challenge
// @Description Issue a single-use nonce for the identity. Any previous challenge is replaced. Valid for 5 minutes.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body IssueChallengeRequest true "Identity to challenge"
// @Success 200 {object} middleware.SuccessResponse{data=ChallengeResponse} "Challenge issued"
// @Failure 400 {object} middleware.ErrorResponse "Missing fields"
// @Failure 403 {object} middleware.ErrorResponse "Identity differs from session"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /auth/challenge [post]
func (h *Handler) IssueChallenge(c *gin.Context) {
	var req IssueChallengeRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.RespondError(c, err)
		return
	}

	identity, err := resolveIdentity(c, req.Identity)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp, err := h.service.IssueChallenge(c.Request.Context(), identity, req.Email)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	middleware.RespondOK(c, resp)
}

// GetChallenge godoc
// @Summary Get the live challenge
// @Description Return the identity's unexpired challenge without consuming it. An expired challenge is deleted.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Param identity query string false "Identity (defaults to the session subject)"
// @Success 200 {object} middleware.SuccessResponse{data=ChallengeResponse} "Live challenge"
// @Failure 400 {object} middleware.ErrorResponse "Missing identity"
// @Failure 404 {object} middleware.ErrorResponse "No challenge issued"
// @Failure 410 {object} middleware.ErrorResponse "Challenge expired"
// @Router /auth/challenge [get]
func (h *Handler) GetChallenge(c *gin.Context) {
	var req GetChallengeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.RespondError(c, errors.InvalidInput(err.Error()))
		return
	}

	identity, err := resolveIdentity(c, req.Identity)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp, err := h.service.GetChallenge(c.Request.Context(), identity)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	middleware.RespondOK(c, resp)
}

// VerifyChallenge godoc
// @Summary Verify a signed challenge
// @Description Consume the identity's challenge and check that the personal_sign signature over the nonce recovers to the claimed address. Limited to 5 attempts per identity per minute.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VerifyChallengeRequest true "Signed challenge"
// @Success 200 {object} middleware.SuccessResponse{data=VerifyChallengeResponse} "Signature verified"
// @Failure 400 {object} middleware.ErrorResponse "Missing fields, nonce mismatch or invalid signature"
// @Failure 401 {object} middleware.ErrorResponse "Address mismatch"
// @Failure 403 {object} middleware.ErrorResponse "Identity differs from session"
// @Failure 404 {object} middleware.ErrorResponse "No challenge issued"
// @Failure 410 {object} middleware.ErrorResponse "Challenge expired"
// @Failure 429 {object} middleware.ErrorResponse "Rate limited"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /auth/verify [post]
func (h *Handler) VerifyChallenge(c *gin.Context) {
	var req VerifyChallengeRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.RespondError(c, err)
		return
	}

	identity, err := resolveIdentity(c, req.Identity)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	req.Identity = identity

	verification, err := h.service.VerifyChallenge(c.Request.Context(), &req)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	status, err := h.recorder.Record(c.Request.Context(), proof.Request{
		ChallengeID: verification.ChallengeID,
		Identity:    verification.Identity,
		Address:     verification.RecoveredAddress,
		BindingHash: verification.BindingHash,
		VerifiedAt:  verification.VerifiedAt,
	})
	if err != nil {
		// The second factor already passed; proof problems are reported, not fatal.
		h.logger.Warn("login proof not recorded",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("identity", verification.Identity),
			zap.Error(err),
		)
	}

	middleware.RespondOK(c, ToVerifyChallengeResponse(verification, string(status)))
}

// bindJSON decodes the body; an empty body counts as all fields missing
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.InvalidInput(err.Error())
	}
	return nil
}

// resolveIdentity defaults to the session subject and forbids acting for another identity
func resolveIdentity(c *gin.Context, requested string) (string, error) {
	subject, ok := middleware.SessionIdentity(c)
	if !ok {
		return requested, nil
	}
	if requested == "" {
		return subject, nil
	}
	if requested != subject {
		return "", errors.Forbidden("Identity does not match the primary session")
	}
	return requested, nil
}
