package api

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// UpstreamStatus is the status the storage service answered with.
	UpstreamStatus int `json:"upstreamStatus,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

var kindStatus = map[string]int{
	common.KindAccountNotFound:      http.StatusNotFound,
	common.KindUserNotFound:         http.StatusNotFound,
	common.KindUnknownProvider:      http.StatusBadRequest,
	common.KindProviderNotSupported: http.StatusBadRequest,
	common.KindValidation:           http.StatusBadRequest,
	common.KindOAuthExchange:        http.StatusBadRequest,
	common.KindProviderUnavailable:  http.StatusConflict,
	common.KindUpstream:             http.StatusBadGateway,
	common.KindUnauthorized:         http.StatusUnauthorized,
	common.KindAlreadyExists:        http.StatusConflict,
}

// httpError maps err to a status code and the body sent to the client.
// Internal failures are reported without detail.
func httpError(err error) (int, errorResponse) {
	kind := common.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		return http.StatusInternalServerError, errorResponse{Error: errorBody{Kind: common.KindInternal, Message: "internal error"}}
	}

	body := errorBody{Kind: kind, Message: err.Error()}

	var upstream *common.UpstreamError
	if errors.As(err, &upstream) {
		body.UpstreamStatus = upstream.Status
		if upstream.Status == http.StatusGatewayTimeout {
			status = http.StatusGatewayTimeout
		}
	}
	return status, errorResponse{Error: body}
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status, body := httpError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
