package middlewares

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
)

const (
	BoardingHouseHeader = "X-Boarding-House-Id"
	BoardingHouseQuery  = "boarding_house_id"
)

// AuthMiddleware requires a Bearer token backed by a live session and puts the
// caller and the boarding house it acts in on the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		bearer := "Bearer "
		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := strings.TrimSpace(auth[len(bearer):])

		claims, err := utils.ParseClaims(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		session, err := models.LoadSession(c.Request.Context(), claims)
		if err != nil {
			if !errors.Is(err, utils.ErrUnauthorized) {
				config.LogError(config.GetLogger(), "authMiddleware.go", "AuthMiddleware", "LoadSession", claims.ID, err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		boardingHouseId, err := selectBoardingHouse(c, session)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetUserNameInContext(ctx, session.Name)
		ctx = utils.SetRoleInContext(ctx, string(session.Role))
		ctx = utils.SetBoardingHouseIdInContext(ctx, boardingHouseId)
		if session.Role == models.RoleBoss {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// selectBoardingHouse: boss users may pick any house (none means all houses),
// every other role is pinned to the house on its session.
func selectBoardingHouse(c *gin.Context, session *models.Session) (int, error) {
	if session.Role != models.RoleBoss {
		return session.BoardingHouseId, nil
	}
	raw := strings.TrimSpace(c.GetHeader(BoardingHouseHeader))
	if raw == "" {
		raw = strings.TrimSpace(c.Query(BoardingHouseQuery))
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, errors.New("invalid boarding house id")
	}
	return id, nil
}

// RequireRoles rejects callers whose role is not listed. Must run after AuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetRoleFromContext(c.Request.Context())
		for _, r := range roles {
			if string(r) == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// RequireBoardingHouse rejects requests that have no single house selected.
// Writes always happen inside one house.
func RequireBoardingHouse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := utils.GetBoardingHouseIdFromContext(c.Request.Context()); !ok || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "select a boarding house with the " + BoardingHouseHeader + " header"})
			return
		}
		c.Next()
	}
}
