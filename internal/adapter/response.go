package adapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mark3labs/openapi2ts/internal/contract"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title,omitempty"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func (p *ProblemDetail) StatusCode() int { return p.Status }

// ValidationError describes a single parameter or body failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func problem(status int, detail string) *ProblemDetail {
	return &ProblemDetail{Type: "about:blank", Title: http.StatusText(status), Status: status, Detail: detail}
}

// ErrorStatus extracts the HTTP status code from an error, defaulting to 500.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	var pd *ProblemDetail
	if !errors.As(err, &pd) {
		status := ErrorStatus(err)
		pd = problem(status, err.Error())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	//nolint:errcheck,errchkjson // best-effort after WriteHeader
	json.NewEncoder(w).Encode(pd)
}

// writeResponse maps a handler response onto the wire after checking it
// against the declared variants. Violations are server errors.
func (rt *Router) writeResponse(w http.ResponseWriter, r *http.Request, op *contract.Operation, resp *Response) {
	if resp == nil {
		rt.logger.Error("handler returned no response", "method", op.Method, "path", op.Path)
		writeError(w, problem(http.StatusInternalServerError, "handler returned no response"))
		return
	}
	_, _, err := op.CheckResponse(resp.HTTPCode, resp.ContentType, resp.Content != nil)
	if err != nil {
		rt.logger.Error("handler response violates contract", "method", op.Method, "path", op.Path,
			"httpCode", resp.HTTPCode, "contentType", resp.ContentType, "error", err)
		writeError(w, problem(http.StatusInternalServerError, err.Error()))
		return
	}
	if resp.Content == nil {
		w.WriteHeader(resp.HTTPCode)
		return
	}

	var data []byte
	switch c := resp.Content.(type) {
	case []byte:
		data = c
	case string:
		if isJSON(resp.ContentType) {
			data, err = json.Marshal(c)
		} else {
			data = []byte(c)
		}
	default:
		data, err = json.Marshal(c)
	}
	if err != nil {
		rt.logger.Error("encode response", "method", op.Method, "path", op.Path, "error", err)
		writeError(w, problem(http.StatusInternalServerError, "cannot encode response"))
		return
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(resp.HTTPCode)
	if r.Method != http.MethodHead {
		//nolint:errcheck // client went away
		w.Write(data)
	}
}
