package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const maxBodySize = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// registering fails only for empty tags or nil functions
	_ = v.RegisterValidation("iban", func(fl validator.FieldLevel) bool {
		return helpers.ValidIBAN(fl.Field().String())
	})
	_ = v.RegisterValidation("reversal_reason", func(fl validator.FieldLevel) bool {
		return types.ReversalReason(fl.Field().String()).Valid()
	})

	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.log.Error("Unable to read request body", "error", err)
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &APIError{Code: InvalidJSON, Description: err.Error()}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
			}
			return errors.InvalidInput("invalid fields: %s", strings.Join(fields, ", "))
		}
		return errors.InvalidInput("%s", err.Error())
	}

	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &APIError{Code: InvalidID, Description: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return id, nil
}
