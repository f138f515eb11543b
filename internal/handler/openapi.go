package handler

import (
	"net/http"

	"github.com/teamplatform/teamplatform/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 description of the HTTP surface.
type OpenAPIHandler struct {
	baseURL string
	version string
}

// NewOpenAPIHandler creates a new OpenAPIHandler. An empty baseURL makes the
// document point at whatever host the request arrived on.
func NewOpenAPIHandler(baseURL, version string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL, version: version}
}

// ServeSpec returns the OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	baseURL := h.baseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		baseURL = scheme + "://" + r.Host
	}
	writeJSON(w, http.StatusOK, openapi.Generate(baseURL, h.version))
}
