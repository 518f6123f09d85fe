package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	mappingdomain "github.com/smallbiznis/tixsync/internal/mapping/domain"
)

func (s *Server) ListMappings(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	confirmed, err := parseOptionalBool(c.Query("confirmed"))
	if err != nil {
		AbortWithError(c, newValidationError("confirmed", "invalid_confirmed", "invalid confirmed filter"))
		return
	}

	req := mappingdomain.ListRequest{
		ListFilter: mappingdomain.ListFilter{
			Confirmed: confirmed,
			Method:    strings.ToLower(strings.TrimSpace(c.Query("method"))),
		},
		PageToken: strings.TrimSpace(c.Query("page_token")),
	}
	if raw := strings.TrimSpace(c.Query("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page size"))
			return
		}
		req.PageSize = size
	}

	resp, err := s.mappingSvc.List(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ConfirmMapping marks a mapping as operator-confirmed. The body is optional
// and may repoint the mapping to another canonical show.
func (s *Server) ConfirmMapping(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req mappingdomain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	mapping, err := s.mappingSvc.Confirm(c.Request.Context(), orgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": mapping})
}

func (s *Server) DeleteMapping(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.mappingSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
