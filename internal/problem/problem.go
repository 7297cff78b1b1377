// Package problem renders structured errors as RFC 7807 problem documents,
// negotiating JSON or XML from the request's Accept header. It is the
// single rendering chokepoint for every non-streaming error response.
package problem

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strings"
)

const (
	// ContentTypeJSON is the problem+json media type.
	ContentTypeJSON = "application/problem+json"
	// ContentTypeXML is the problem+xml media type.
	ContentTypeXML = "application/problem+xml"

	defaultType = "about:blank"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	XMLName  xml.Name `json:"-" xml:"problem"`
	Type     string   `json:"type" xml:"type"`
	Title    string   `json:"title" xml:"title"`
	Status   int      `json:"status" xml:"status"`
	Detail   string   `json:"detail,omitempty" xml:"detail,omitempty"`
	Instance string   `json:"instance,omitempty" xml:"instance,omitempty"`
}

// New creates a problem with the default "about:blank" type.
func New(status int, title, detail string) Problem {
	return Problem{
		Type:   defaultType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// Render writes p to w, choosing XML when the Accept header prefers it and
// JSON otherwise. The Instance field defaults to the request path.
func Render(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Type == "" {
		p.Type = defaultType
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}

	if wantsXML(r) {
		w.Header().Set("Content-Type", ContentTypeXML)
		w.WriteHeader(p.Status)
		w.Write([]byte(xml.Header))
		xml.NewEncoder(w).Encode(p)
		return
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// wantsXML reports whether the request prefers an XML rendering. JSON is
// the default for absent, wildcard or mixed preferences.
func wantsXML(r *http.Request) bool {
	if r == nil {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}

	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "application/json", "application/problem+json", "*/*", "application/*":
			return false
		case "application/xml", "text/xml", "application/problem+xml":
			return true
		}
	}

	return false
}
