package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type Cookie struct {
	Name   string
	Value  string
	Path   string
	Domain string
}

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Cookies    []Cookie
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyValue parses the body as JSON when possible, falling back to the raw
// string. This is what gets bound to the `response` variable.
func (r *Response) BodyValue() any {
	trimmed := strings.TrimSpace(string(r.Body))
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") ||
		strings.Contains(r.ContentType(), "application/json") {
		var parsed any
		if err := json.Unmarshal(r.Body, &parsed); err == nil {
			return parsed
		}
	}
	return string(r.Body)
}

// Path navigates the JSON body with a gjson path expression.
func (r *Response) Path(path string) any {
	return gjson.GetBytes(r.Body, path).Value()
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
