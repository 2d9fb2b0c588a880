package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	eventlogdomain "github.com/smallbiznis/clarity/internal/eventlog/domain"
)

// IngestEvent hands the event to the deduplication gate for the website
// resolved by WebsiteRequired. A repeated event answers 200 with the original row.
func (s *Server) IngestEvent(c *gin.Context) {
	ctx := c.Request.Context()
	site, ok := websiteFromContext(c)
	if !ok {
		AbortWithError(c, ErrInternal)
		return
	}

	var req eventlogdomain.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.WebsiteID = site.ID.String()

	result, err := s.eventSvc.Ingest(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("ingest_outcome", string(result.Outcome))

	status := http.StatusCreated
	if result.Outcome == eventlogdomain.OutcomeDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": result.Event, "outcome": result.Outcome})
}

func (s *Server) ListEvents(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.eventSvc.List(c.Request.Context(), eventlogdomain.ListEventRequest{
		WebsiteID: c.Param("id"),
		Status:    c.Query("status"),
		EventName: c.Query("event_name"),
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Events, "page_info": resp.PageInfo})
}

func (s *Server) GetEvent(c *gin.Context) {
	event, err := s.eventSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}
