package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
)

func (s *Server) GetAccount(c *gin.Context) {
	account, err := s.accountSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListAccountMeterReadings(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.readingSvc.ListByAccount(c.Request.Context(), readingdomain.ListRequest{
		AccountID:  c.Param("id"),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
