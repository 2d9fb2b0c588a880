package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	connectiondomain "github.com/smallbiznis/clarity/internal/connection/domain"
)

func (s *Server) CreateConnection(c *gin.Context) {
	var req connectiondomain.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WebsiteID = c.Param("id")

	resp, err := s.connectionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListConnections(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.connectionSvc.List(c.Request.Context(), connectiondomain.ListConnectionRequest{
		WebsiteID: c.Param("id"),
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Connections, "page_info": resp.PageInfo})
}

func (s *Server) GetConnection(c *gin.Context) {
	resp, err := s.connectionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateConnection(c *gin.Context) {
	resp, err := s.connectionSvc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateConnection(c *gin.Context) {
	resp, err := s.connectionSvc.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteConnection(c *gin.Context) {
	if err := s.connectionSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
