package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"steward/misc"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		c.JSON(respond.Status, &misc.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request: io.EOF (no body).
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if errors.Is(genericErr, ErrUnknownTier) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "governance.unknown_tier", Message: "unknown risk tier"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrDuplicateWorkflow) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "governance.duplicate_workflow", Message: "a non-terminal workflow already exists for the initiative"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrStageNotReady) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "governance.stage_not_ready", Message: "stage not ready"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrAlreadyTerminal) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "governance.already_terminal", Message: "workflow already terminal"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrAlreadyDecided) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "governance.already_decided", Message: "approval already decided"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrConflict) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "common.conflict", Message: "concurrent update conflict"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrAdvisoryUnavailable) {
		c.JSON(http.StatusBadGateway, &misc.ErrorBody{Code: "advisory.unavailable", Message: "advisory unavailable"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, gorm.ErrRecordNotFound) || errors.Is(genericErr, ErrNotFound) {
		c.JSON(http.StatusNotFound, &misc.ErrorBody{Code: "common.record_not_found", Message: "record not found"})
		c.Abort()
		return
	}

	c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
	c.Abort()
}
