package http

import (
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
)

// Request accumulates state from url/path/param/header/request steps and is
// reset after each invocation. It can be re-built for retries.
type Request struct {
	BaseURL string
	Paths   []string
	Params  neturl.Values
	Headers map[string]string
	Cookies map[string]string
	Method  string
	Body    []byte
}

func NewRequest() *Request {
	return &Request{
		Params:  neturl.Values{},
		Headers: map[string]string{},
		Cookies: map[string]string{},
	}
}

// Copy returns an independent request, used to preserve builder state
// across retry attempts.
func (r *Request) Copy() *Request {
	dup := &Request{
		BaseURL: r.BaseURL,
		Paths:   append([]string(nil), r.Paths...),
		Params:  neturl.Values{},
		Headers: map[string]string{},
		Cookies: map[string]string{},
		Method:  r.Method,
		Body:    append([]byte(nil), r.Body...),
	}
	for k, v := range r.Params {
		dup.Params[k] = append([]string(nil), v...)
	}
	for k, v := range r.Headers {
		dup.Headers[k] = v
	}
	for k, v := range r.Cookies {
		dup.Cookies[k] = v
	}
	return dup
}

// URL joins the base URL with the accumulated path segments and query.
func (r *Request) URL() string {
	url := strings.TrimSuffix(r.BaseURL, "/")
	for _, p := range r.Paths {
		url += "/" + strings.Trim(p, "/")
	}
	if len(r.Params) > 0 {
		url += "?" + r.Params.Encode()
	}
	return url
}

func (r *Request) build() (*http.Request, error) {
	if r.BaseURL == "" {
		return nil, fmt.Errorf("no url set, use the url step before method")
	}
	if r.Method == "" {
		return nil, fmt.Errorf("no http method set")
	}
	httpReq, err := http.NewRequest(strings.ToUpper(r.Method), r.URL(), newBodyReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for key, value := range r.Headers {
		httpReq.Header.Set(key, value)
	}
	if r.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for name, value := range r.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return httpReq, nil
}
