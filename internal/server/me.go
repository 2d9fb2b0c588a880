package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/internal/authcontext"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
)

type syncMeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) GetMe(c *gin.Context) {
	user, err := s.userSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// SyncMe registers the signed-in user on first visit. Later calls return the
// stored row unchanged.
func (s *Server) SyncMe(c *gin.Context) {
	var req syncMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	subject, ok := authcontext.SubjectFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.userSvc.EnsureFromIdentity(ctx, userdomain.Identity{
		ClerkID: subject,
		Email:   req.Email,
		Name:    req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) MarkOnboarded(c *gin.Context) {
	user, err := s.userSvc.MarkOnboarded(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) DeleteMe(c *gin.Context) {
	if err := s.userSvc.DeleteCurrent(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
