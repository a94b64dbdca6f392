package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pitwall/errors"
)

// AbortWithError stops the handler chain and writes err as the structured
// error body. Errors that are not *apperrors.AppError become a generic 500.
func AbortWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
