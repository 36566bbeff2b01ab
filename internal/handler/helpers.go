package handler

import (
	"context"
	"net/http"
	"reflect"
	"strconv"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError records err for the ErrorHandler log and answers with the
// engine error envelope.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apierror.HTTPStatus(err), apierror.FromError(err))
}

// escalatorFor answers the engine's supervisor prompt with the credentials the
// request carried. Without credentials the prompt counts as dismissed and the
// shell receives EscalationAborted with the key to ask for.
func escalatorFor(creds *dto.SupervisorCredentials) service.Escalator {
	return func(_ context.Context, _ model.PermissionKey) (*service.Credentials, bool) {
		if creds == nil {
			return nil, false
		}
		return &service.Credentials{Username: creds.Username, Password: creds.Password}, true
	}
}

func pathIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		c.JSON(http.StatusBadRequest, apierror.New("index must be a non-negative integer"))
		return 0, false
	}
	return i, true
}

func toFormAmounts(m map[string]decimal.Decimal) dto.FormAmounts {
	out := make(dto.FormAmounts, len(m))
	for k, v := range m {
		out[model.TenderForm(k)] = v
	}
	return out
}
