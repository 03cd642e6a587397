package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	SKUs    []string          `json:"skus,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// decodeBody reads a JSON body into dst and runs the struct validations.
// Unknown fields are rejected.
func decodeBody(r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Validation("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return &fieldErrors{err: err}
	}
	return nil
}

// decodeOptionalBody is decodeBody for actions whose body may be omitted.
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeBody(r, dst)
}

// fieldErrors carries validator output to the response.
type fieldErrors struct {
	err error
}

func (e *fieldErrors) Error() string { return "validation failed: " + e.err.Error() }

func (e *fieldErrors) Is(target error) bool { return target == errs.ErrValidation }

func (e *fieldErrors) fields() map[string]string {
	ves, ok := e.err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(ves))
	for _, fe := range ves {
		out[fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:]] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	}
	return "is invalid"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if fe, ok := err.(*fieldErrors); ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: apiError{
			Kind:    string(errs.KindValidation),
			Message: "validation failed",
			Fields:  fe.fields(),
		}})
		return
	}

	status := errs.HTTPStatus(err)
	body := apiError{
		Kind:    string(errs.KindOf(err)),
		Message: err.Error(),
		SKUs:    errs.ShortageSKUs(err),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err.Error())
		if body.Kind == "" {
			body.Kind = "INTERNAL"
			body.Message = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: body})
}

func tenant(r *http.Request) string {
	return chi.URLParam(r, "tenantID")
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.Validation("%s must be a boolean", name)
	}
	return v, nil
}

// querySKUs accepts repeated and comma separated sku parameters.
func querySKUs(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["sku"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
