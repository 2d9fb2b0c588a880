package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clarity/internal/authcontext"
	userdomain "github.com/smallbiznis/clarity/internal/user/domain"
)

const greetingFormat = "Hello %s, welcome to ClarityTracking v2!"

type helloInput struct {
	Text *string `json:"text"`
}

type createTestUserInput struct {
	Email string `json:"email"`
}

// RegisterRPCRoutes mounts the example procedures on tRPC compatible paths.
// Only hello is public.
func (s *Server) RegisterRPCRoutes() {
	rpc := s.engine.Group("/api/trpc")

	rpc.GET("/example.hello", s.Hello)
	rpc.GET("/example.getSecretMessage", s.SessionRequired(), s.GetSecretMessage)
	rpc.POST("/example.createTestUser", s.SessionRequired(), s.CreateTestUser)
}

// Hello reads text from ?text= or from a tRPC style ?input={"text":...}.
func (s *Server) Hello(c *gin.Context) {
	var input helloInput
	if raw, ok := c.GetQuery("input"); ok {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if text, ok := c.GetQuery("text"); ok {
		input.Text = &text
	}
	if input.Text == nil {
		AbortWithError(c, newValidationError("text", "required", "text is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"greeting": greeting(*input.Text)})
}

func (s *Server) GetSecretMessage(c *gin.Context) {
	subject, ok := authcontext.SubjectFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, "You are logged in! Your user ID is "+subject)
}

func (s *Server) CreateTestUser(c *gin.Context) {
	var req createTestUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.userSvc.CreateTestUser(c.Request.Context(), userdomain.CreateTestUserRequest{
		Email: req.Email,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func greeting(text string) string {
	return fmt.Sprintf(greetingFormat, text)
}
