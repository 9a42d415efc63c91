package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// ErrResponse is the JSON error body of every failed request.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string            `json:"status"`
	ErrorText  string            `json:"error,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErr(code int, err error) *ErrResponse {
	resp := &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		StatusText:     http.StatusText(code),
	}
	if err != nil {
		resp.ErrorText = err.Error()
	}
	return resp
}

// errInvalidRequest reports a body that does not decode or validate. Validation
// failures are listed per JSON field.
func errInvalidRequest(err error) render.Renderer {
	resp := newErr(http.StatusBadRequest, err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.ErrorText = "validation failed"
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = fe.Tag()
		}
	}
	return resp
}

func errNotFound(err error) render.Renderer {
	return newErr(http.StatusNotFound, err)
}

func errUnavailable(err error) render.Renderer {
	return newErr(http.StatusServiceUnavailable, err)
}

func errInternal(err error) render.Renderer {
	return newErr(http.StatusInternalServerError, err)
}

var errTooManyRequests = &ErrResponse{
	HTTPStatusCode: http.StatusTooManyRequests,
	StatusText:     http.StatusText(http.StatusTooManyRequests),
	ErrorText:      "rate limit exceeded",
}
