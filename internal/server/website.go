package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	websitedomain "github.com/smallbiznis/clarity/internal/website/domain"
)

func (s *Server) CreateWebsite(c *gin.Context) {
	var req websitedomain.CreateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	site, err := s.websiteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": site})
}

func (s *Server) ListWebsites(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.websiteSvc.List(c.Request.Context(), websitedomain.ListWebsiteRequest{
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Websites, "page_info": resp.PageInfo})
}

func (s *Server) GetWebsite(c *gin.Context) {
	site, err := s.websiteSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": site})
}

func (s *Server) DeleteWebsite(c *gin.Context) {
	if err := s.websiteSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
