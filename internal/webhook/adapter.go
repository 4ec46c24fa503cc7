package webhook

import (
	"encoding/json"
	"io"
	"net/http"
)

// HTTPAdapter binds the proxy to a plain net/http request/response pair.
type HTTPAdapter struct {
	w http.ResponseWriter
	r *http.Request
}

func NewHTTPAdapter(w http.ResponseWriter, r *http.Request) *HTTPAdapter {
	return &HTTPAdapter{w: w, r: r}
}

func (a *HTTPAdapter) Method() string { return a.r.Method }

func (a *HTTPAdapter) Body() ([]byte, error) {
	defer a.r.Body.Close()
	return io.ReadAll(io.LimitReader(a.r.Body, 1<<20))
}

func (a *HTTPAdapter) WriteJSON(status int, headers map[string]string, v any) error {
	for k, val := range headers {
		a.w.Header().Set(k, val)
	}
	if v == nil {
		a.w.WriteHeader(status)
		return nil
	}
	a.w.Header().Set("Content-Type", "application/json")
	a.w.WriteHeader(status)
	return json.NewEncoder(a.w).Encode(v)
}

// ServeHTTP lets a Handler be mounted directly on a mux through the HTTP
// adapter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Handle(r.Context(), NewHTTPAdapter(w, r))
}

// FuncRequest and FuncResponse are the invocation shape of a
// function-as-a-service platform: the platform hands the function a frozen
// request and expects one response value back.
type FuncRequest struct {
	HTTPMethod string            `json:"httpMethod"`
	Headers    map[string]string `json:"headers"`
	RawBody    string            `json:"body"`
}

type FuncResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	RawBody    string            `json:"body"`
}

// FuncAdapter binds the proxy to the function invocation shape.
type FuncAdapter struct {
	req  FuncRequest
	resp *FuncResponse
}

func NewFuncAdapter(req FuncRequest) *FuncAdapter {
	return &FuncAdapter{req: req, resp: &FuncResponse{}}
}

func (a *FuncAdapter) Method() string { return a.req.HTTPMethod }

func (a *FuncAdapter) Body() ([]byte, error) { return []byte(a.req.RawBody), nil }

func (a *FuncAdapter) WriteJSON(status int, headers map[string]string, v any) error {
	a.resp.StatusCode = status
	a.resp.Headers = map[string]string{}
	for k, val := range headers {
		a.resp.Headers[k] = val
	}
	if v == nil {
		return nil
	}
	a.resp.Headers["Content-Type"] = "application/json"
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.resp.RawBody = string(raw)
	return nil
}

// Response returns the value written by the handler.
func (a *FuncAdapter) Response() FuncResponse { return *a.resp }
