package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
)

// maxReportBytes bounds a single submitted report.
const maxReportBytes = 5 << 20

type submitReportRequest struct {
	Body string `json:"body"`
}

func (s *Server) SubmitReport(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := readReportBody(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.reportSvc.Process(c.Request.Context(), reportdomain.ProcessRequest{
		OrgID: orgID,
		Body:  body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if summary.Status == reportdomain.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"data": summary})
}

// readReportBody accepts the report as raw text or as {"body": "..."}.
func readReportBody(c *gin.Context) (string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", newValidationError("body", "too_large", "report body is too large")
		}
		return "", invalidRequestError()
	}

	if c.ContentType() != gin.MIMEJSON {
		return string(raw), nil
	}

	var req submitReportRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", invalidRequestError()
	}
	return req.Body, nil
}

func (s *Server) ListReports(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := reportdomain.ListRequest{
		Status:    reportdomain.Status(strings.ToLower(strings.TrimSpace(c.Query("status")))),
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

	resp, err := s.reportSvc.List(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReport(c *gin.Context) {
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

	detail, err := s.reportSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}
