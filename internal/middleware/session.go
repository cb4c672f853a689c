package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
)

// DraftOwnerChecker reports whether author may use draft id.
type DraftOwnerChecker interface {
	Owns(author, id string) error
}

// RequireDraftOwner rejects requests on drafts that are closed, expired or
// owned by someone else. The draft id is read from the :id path param.
func RequireDraftOwner(drafts DraftOwnerChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		err := drafts.Owns(claims.Author(), c.Param("id"))
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, service.ErrNotDraftOwner):
			response.AbortFail(c, http.StatusForbidden, response.ErrNotDraftOwner)
		default:
			response.AbortFail(c, http.StatusNotFound, response.ErrDraftNotFound)
		}
	}
}
