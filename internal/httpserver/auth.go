package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyUserID = "user_id"
	contextKeyRole   = "role"
	roleAdmin        = "admin"
	bearerPrefix     = "Bearer "
)

// authRequired validates a Bearer access token signed with HS256 and stores
// the token's subject and role claims on the request context.
func authRequired(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, bearerPrefix)

		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Invalid claims"))
			return
		}
		userID, ok := subjectUserID(claims)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Invalid subject"))
			return
		}

		ctx.Set(contextKeyUserID, userID)
		if role, ok := claims["role"].(string); ok {
			ctx.Set(contextKeyRole, role)
		}
		ctx.Next()
	}
}

// requireRole aborts with 403 unless a previous middleware stored one of the
// allowed roles on the context.
func requireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(ctx *gin.Context) {
		role, ok := ctx.Get(contextKeyRole)
		roleName, isString := role.(string)
		if !ok || !isString || !allowed[roleName] {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("Forbidden"))
			return
		}
		ctx.Next()
	}
}

// subjectUserID reads the numeric user identity from the sub claim. Tokens
// may carry the subject as a string or a JSON number.
func subjectUserID(claims jwt.MapClaims) (int64, bool) {
	switch subject := claims["sub"].(type) {
	case string:
		userID, err := strconv.ParseInt(subject, 10, 64)
		if err != nil || userID <= 0 {
			return 0, false
		}
		return userID, true
	case float64:
		userID := int64(subject)
		if userID <= 0 {
			return 0, false
		}
		return userID, true
	default:
		return 0, false
	}
}

func authenticatedUserID(ctx *gin.Context) (int64, bool) {
	value, ok := ctx.Get(contextKeyUserID)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}

func isAdmin(ctx *gin.Context) bool {
	role, ok := ctx.Get(contextKeyRole)
	if !ok {
		return false
	}
	roleName, ok := role.(string)
	return ok && roleName == roleAdmin
}
