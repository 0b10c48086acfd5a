package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/identity"
	"github.com/cppla/hongbao/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token for logout.
	ContextTokenKey = "token"
)

var errBadAuthHeader = apperr.Auth(apperr.CodeBadAuthHeader, "invalid authorization header format")

// AuthRequired resolves the acting identity through gate. Gates that need no
// credential (single-owner profiles) let every request through as the local owner.
func AuthRequired(gate identity.Gate) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := ""
		if gate.RequiresCredential() {
			var err error
			token, err = bearerToken(ctx.GetHeader("Authorization"))
			if err != nil {
				utils.Fail(ctx, err)
				ctx.Abort()
				return
			}
		}

		who, err := gate.Resolve(ctx.Request.Context(), token)
		if err != nil {
			utils.Fail(ctx, err)
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, who.UserID)
		ctx.Set(ContextUsernameKey, who.Username)
		ctx.Set(ContextTokenKey, who.Token)
		ctx.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.ErrMissingCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadAuthHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperr.ErrMissingCredential
	}
	return token, nil
}
