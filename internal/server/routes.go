package server

import (
	"net/http"

	"github.com/acme/product-importer/internal/importer"
	"github.com/acme/product-importer/internal/product"
	"github.com/acme/product-importer/internal/webhook"
)

// Deps bundles the services the HTTP surface exposes.
type Deps struct {
	Products  *product.Service
	Imports   *importer.Service
	Webhooks  *webhook.Service
	UploadDir string
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(deps Deps) http.Handler {
	return newMux(deps)
}

func newMux(deps Deps) http.Handler {
	h := &handler{
		products:  deps.Products,
		imports:   deps.Imports,
		webhooks:  deps.Webhooks,
		uploadDir: deps.UploadDir,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("POST /api/v1/imports", h.createImport)
	mux.HandleFunc("GET /api/v1/imports/{id}", h.importStatus)

	mux.HandleFunc("GET /api/v1/products", h.listProducts)
	mux.HandleFunc("POST /api/v1/products", h.createProduct)
	mux.HandleFunc("DELETE /api/v1/products", h.deleteAllProducts)
	mux.HandleFunc("GET /api/v1/products/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/v1/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /api/v1/products/{id}", h.deleteProduct)

	mux.HandleFunc("GET /api/v1/webhooks", h.listWebhooks)
	mux.HandleFunc("POST /api/v1/webhooks", h.createWebhook)
	mux.HandleFunc("PUT /api/v1/webhooks/{id}", h.updateWebhook)
	mux.HandleFunc("DELETE /api/v1/webhooks/{id}", h.deleteWebhook)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/test", h.testWebhook)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
