package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/buildhub-payments/internal/common"
)

func errorBody(requestID, code, message string) gin.H {
	return gin.H{
		"error":      gin.H{"code": code, "message": message},
		"request_id": requestID,
	}
}

// respondError maps err through the common error table and aborts the request.
func (s *Server) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	logger := common.LoggerWithContext(c.Request.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		logger.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody(GetRequestID(c), common.ErrorCode(err), common.PublicMessage(err)))
}

func badRequest(format string) error {
	return common.NewAppError("INVALID_INPUT", format, common.ErrInvalidInput)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name + " must be a positive integer")
	}
	return id, nil
}

func queryID(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest(name + " must be a positive integer")
	}
	return &id, nil
}
