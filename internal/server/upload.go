package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/meterreadings/internal/observability/logger"
	"github.com/smallbiznis/meterreadings/internal/ratelimit"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"go.uber.org/zap"
)

const (
	HeaderUploadBatchID = "X-Upload-Batch-Id"
	uploadFormField     = "file"
	// room for multipart boundaries and part headers on top of the file limit
	multipartOverhead = 64 << 10
)

type uploadResponse struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

func (s *Server) UploadMeterReadings(c *gin.Context) {
	maxBytes := s.uploadCfg.Get().MaxUploadBytes
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile(uploadFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			AbortWithError(c, readingdomain.ErrUploadTooLarge)
			return
		}
		AbortWithError(c, readingdomain.ErrNoFileProvided)
		return
	}
	if fileHeader.Size == 0 {
		AbortWithError(c, readingdomain.ErrNoFileProvided)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	release, err := s.uploadLimiter.AcquireUpload(ctx)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLockNotObtained) {
			denyUpload(c, rateLimitReasonUploadInProgress, s)
			return
		}
		logger.FromContext(ctx).Warn("upload lock failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			logger.FromContext(ctx).Warn("upload unlock failed", zap.Error(err))
		}
	}()

	result, err := s.readingSvc.Upload(ctx, readingdomain.UploadRequest{
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("upload_id", result.UploadID)
	c.Header(HeaderUploadBatchID, result.UploadID)
	c.JSON(http.StatusOK, uploadResponse{Success: result.Success, Failed: result.Failed})
}

func (s *Server) GetMeterReadingUpload(c *gin.Context) {
	batch, err := s.readingSvc.GetUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batch})
}
