// Package docs serves the OpenAPI description of the HTTP API and a Swagger UI
// on top of it.
package docs

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const swaggerPath = "/docs/swagger.yaml"

//go:embed swagger.yaml
var swaggerYAML []byte

// RegisterRoutes mounts the UI under /docs and the raw document at /docs/swagger.yaml
func RegisterRoutes(r chi.Router) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusFound)
	})

	r.Get(swaggerPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(swaggerYAML)
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL(swaggerPath),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))
}
