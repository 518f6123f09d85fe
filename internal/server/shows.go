package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
)

func (s *Server) ListShows(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	from, err := parseDateOnly(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "from must be YYYY-MM-DD"))
		return
	}
	to, err := parseDateOnly(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "to must be YYYY-MM-DD"))
		return
	}

	shows, err := s.showSvc.ListByDateRange(c.Request.Context(), orgID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if shows == nil {
		shows = []showdomain.CanonicalShow{}
	}

	c.JSON(http.StatusOK, gin.H{"data": shows})
}

// UpsertShow registers or refreshes a canonical show from the upstream catalogue.
func (s *Server) UpsertShow(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req showdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	show, err := s.showSvc.Upsert(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": show})
}
