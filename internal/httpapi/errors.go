package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mentorbridge/mentorbridge"
)

type errorBody struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s",
	"max":      "must be at most %s",
	"gte":      "must be >= %s",
	"lte":      "must be <= %s",
	"oneof":    "must be one of: %s",
}

// bind decodes the JSON body into dst and validates it. On failure it has
// already written the response.
func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, fmt.Errorf("%w: malformed JSON body", mentorbridge.ErrInvalidInput))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			h.fail(c, err)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			msg, ok := fieldMessages[fe.Tag()]
			if !ok {
				msg = "is invalid"
			} else if strings.Contains(msg, "%s") {
				msg = fmt.Sprintf(msg, fe.Param())
			}
			fields[fe.Field()] = msg
		}
		c.JSON(mentorbridge.KindInvalidInput.HTTPStatus(), errorBody{
			Detail: "request validation failed",
			Code:   string(mentorbridge.KindInvalidInput),
			Fields: fields,
		})
		return false
	}
	return true
}

func (h *handler) fail(c *gin.Context, err error) {
	kind := mentorbridge.KindOf(err)
	detail := err.Error()
	switch kind {
	case mentorbridge.KindUnauthenticated:
		detail = "could not validate credentials"
		if errors.Is(err, mentorbridge.ErrInvalidCredentials) {
			detail = "invalid credentials"
		}
	case mentorbridge.KindInternal:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		detail = "internal error"
	}
	c.JSON(kind.HTTPStatus(), errorBody{Detail: detail, Code: string(kind)})
}
