package api

import (
	"errors"
	"net/http"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	status int
	title  string
}

var errorResponses = map[apperr.Kind]errorResponse{
	apperr.KindNotAuthenticated:  {http.StatusUnauthorized, "Not authenticated"},
	apperr.KindForbidden:         {http.StatusForbidden, "Forbidden"},
	apperr.KindInvalidInput:      {http.StatusBadRequest, "Invalid request"},
	apperr.KindNotFound:          {http.StatusNotFound, "Not found"},
	apperr.KindVendorConflict:    {http.StatusConflict, "Cart holds another vendor's items"},
	apperr.KindOutOfStock:        {http.StatusConflict, "Out of stock"},
	apperr.KindInsufficientStock: {http.StatusConflict, "Insufficient stock"},
	apperr.KindIllegalTransition: {http.StatusConflict, "Illegal status transition"},
	apperr.KindVendorBlocked:     {http.StatusForbidden, "Store access restricted"},
}

// respondError aborts the request with the status and body for err's kind
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp, ok := errorResponses[kind]
	if !ok {
		details := "please try again"
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Msg != "" {
			details = ae.Msg
		}
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(resp.status, gin.H{
		"error":   resp.title,
		"details": err.Error(),
	})
}

func invalidBody(err error) error {
	return &apperr.Error{Kind: apperr.KindInvalidInput, Msg: "invalid request body", Err: err}
}
