package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/logging"
)

var (
	errMissingToken        = fmt.Errorf("%w: not authenticated", common.ErrorUnauthorized)
	errInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", common.ErrorUnauthorized)
	errBadBody             = fmt.Errorf("%w: invalid request body", common.ErrorValidation)
	errNotEnoughPrivileges = fmt.Errorf("%w: not enough privileges", common.ErrorForbidden)
)

// kinds is checked in order; the first match decides the status code.
var kinds = []struct {
	kind   error
	status int
}{
	{common.ErrorValidation, http.StatusBadRequest},
	{common.ErrorConflict, http.StatusConflict},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrorForbidden, http.StatusForbidden},
	{common.ErrorNotFound, http.StatusNotFound},
}

func classify(err error) (int, error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, nil
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, nil
}

// publicMessage strips the "kind: " prefix from err's text.
func publicMessage(err error, status int, kind error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusRequestEntityTooLarge:
		return "request body too large"
	}

	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return "validation failed"
	}

	msg := err.Error()
	rest, ok := strings.CutPrefix(msg, kind.Error()+": ")
	if !ok {
		return msg
	}
	if kind == common.ErrorNotFound {
		return rest + " not found"
	}
	return rest
}

// writeError renders err as {"error": ..., "fields": ...} and aborts the
// chain. Unclassified errors are logged and reported as 500.
func writeError(c *gin.Context, log logging.Logger, err error) {
	status, kind := classify(err)
	body := gin.H{"error": publicMessage(err, status, kind)}

	var ve *common.ValidationError
	if errors.As(err, &ve) && !ve.Empty() {
		body["fields"] = ve.Fields
	}

	switch status {
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", common.BearerScheme)
	case http.StatusInternalServerError:
		log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, body)
}

// bindingError converts a gin binding failure into the error taxonomy.
func bindingError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		verr := &common.ValidationError{}
		for _, fe := range fields {
			verr.Add(fe.Field(), reason(fe))
		}
		return verr
	}

	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errBadBody)
	}
	return errBadBody
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
