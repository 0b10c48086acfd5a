package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/identity"
	"github.com/cppla/hongbao/metrics"
	"github.com/cppla/hongbao/middleware"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/utils"
)

// AuthController handles account endpoints of the multi-user profile.
type AuthController struct {
	gate  *identity.JWTGate
	cache *utils.Cache
}

// NewAuthController creates an AuthController. cache may be nil.
func NewAuthController(gate *identity.JWTGate, cache *utils.Cache) *AuthController {
	return &AuthController{gate: gate, cache: cache}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type visibilityRequest struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsPublic *bool  `json:"is_public,omitempty"`
}

func sanitizeUserResponse(u models.User, withVisibility bool) userResponse {
	resp := userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
	if withVisibility {
		public := u.IsPublic
		resp.IsPublic = &public
	}
	return resp
}

// Register creates a local account.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}

	id, err := a.gate.Register(ctx.Request.Context(), identity.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		utils.Fail(ctx, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	utils.Success(ctx, gin.H{"userId": id})
}

// Login issues a bearer token valid for the configured TTL.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}

	token, user, err := a.gate.Authenticate(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		utils.Fail(ctx, err)
		return
	}
	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user, false),
	})
}

// Logout revokes the presented token.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.gate.Logout(ctx.Request.Context(), ctx.GetString(middleware.ContextTokenKey)); err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := ownerOrAbort(ctx)
	if !ok {
		return
	}
	user, err := a.gate.Me(ctx.Request.Context(), userID)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, sanitizeUserResponse(user, true))
}

// UpdateVisibility opts the caller in or out of the leaderboard.
func (a *AuthController) UpdateVisibility(ctx *gin.Context) {
	userID, ok := ownerOrAbort(ctx)
	if !ok {
		return
	}
	var req visibilityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, apperr.Validation(apperr.CodeInvalidField, "is_public is required").WithCause(err))
		return
	}
	user, err := a.gate.SetVisibility(ctx.Request.Context(), userID, *req.IsPublic)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	a.cache.InvalidateByPrefix(ctx.Request.Context(), leaderboardCachePrefix)
	utils.Success(ctx, sanitizeUserResponse(user, true))
}
