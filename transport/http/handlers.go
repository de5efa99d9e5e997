package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// ChallengeRequest is the body of POST /auth/challenge
type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

// ChallengeResponse is returned by POST /auth/challenge
type ChallengeResponse struct {
	Message        string    `json:"message"`
	Nonce          string    `json:"nonce"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Address   string `json:"address"`
}

// VerifyResponse is returned by POST /auth/verify
type VerifyResponse struct {
	Credential string `json:"credential"`
	Address    string `json:"address"`
	TokenType  string `json:"token_type"`
	ExpiresIn  int64  `json:"expires_in"`
}

// ErrorResponse carries a machine-readable error kind
type ErrorResponse struct {
	Error string `json:"error"`
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.KindInvalidAddress})
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		Message:        challenge.String(),
		Nonce:          challenge.Nonce,
		ExpirationTime: challenge.ExpirationTime,
	})
}

// Verify handles a signed challenge and returns a session credential
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.KindMalformedMessage})
		return
	}

	credential, session, err := h.authService.Verify(c.Request.Context(), req.Message, req.Signature, req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Credential: credential,
		Address:    session.Address,
		TokenType:  "Bearer",
		ExpiresIn:  int64(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
	})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: core.KindInternalFault})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":    session.Address,
		"session_id": session.ID,
		"expires_at": session.ExpiresAt,
	})
}

// Authorize checks if a user is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	// Reaching this handler means the auth middleware accepted the credential.
	session, ok := sessionFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: core.KindInternalFault})
		return
	}

	c.Header("X-Auth-Address", session.Address)
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    session.Address,
	})
}

// abortWithError maps a service error to its status code. Internal faults
// are reported without detail.
func abortWithError(c *gin.Context, err error) {
	kind := core.Kind(err)
	status := http.StatusBadRequest
	if kind == core.KindInternalFault {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: kind})
}
