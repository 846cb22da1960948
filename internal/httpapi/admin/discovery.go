package admin

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/tools/discovery"
)

// DiscoveryRouter imports an OpenAPI/Swagger document into a tenant's
// ConfigStore (and, for each discovered operation, a Tool record in the
// ToolServiceStore) without hand-authoring a URI per endpoint. Kept as a
// second router family alongside the chi-based CRUD routes.
type DiscoveryRouter struct {
	configStore  config.ConfigStore
	serviceStore config.ToolServiceStore
}

// NewDiscoveryRouter builds a DiscoveryRouter. serviceStore may be nil, in
// which case discovered tool metadata is dropped after the api service
// itself is saved.
func NewDiscoveryRouter(configStore config.ConfigStore, serviceStore config.ToolServiceStore) *DiscoveryRouter {
	return &DiscoveryRouter{configStore: configStore, serviceStore: serviceStore}
}

// Mount builds a gorilla/mux router exposing the import endpoint.
func (d *DiscoveryRouter) Mount() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tenants/{tenantId}/discovery/{serviceCode}", d.importSpec).Methods(http.MethodPost)
	return r
}

func (d *DiscoveryRouter) importSpec(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID, serviceCode := vars["tenantId"], vars["serviceCode"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	spec, err := discovery.ParseContent(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	svc, discoveredTools := spec.ToToolService(serviceCode, tenantID)
	if err := d.configStore.SaveApiService(r.Context(), tenantID, svc); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if d.serviceStore != nil {
		for _, t := range discoveredTools {
			if err := d.serviceStore.SaveTool(r.Context(), t); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":    svc,
		"tool_count": len(discoveredTools),
	})
}
