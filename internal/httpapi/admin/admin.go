// Package admin exposes tenant-scoped CRUD over API services, datasources,
// and UDFs (internal/config.ConfigStore), plus an OpenAPI/Swagger
// discovery-import endpoint that turns a spec document into a saved
// api:// service without hand-authoring one endpoint at a time.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/r3e-network/flowengine/internal/config"
)

// Router bundles the config stores the CRUD routes operate on.
type Router struct {
	configStore config.ConfigStore
}

// NewRouter builds an admin Router.
func NewRouter(configStore config.ConfigStore) *Router {
	return &Router{configStore: configStore}
}

// Mount builds a chi router exposing /tenants/{tenantId}/api-services,
// /datasources, and /udfs CRUD routes.
func (a *Router) Mount() *chi.Mux {
	r := chi.NewRouter()
	r.Route("/tenants/{tenantId}", func(tr chi.Router) {
		tr.Route("/api-services", func(sr chi.Router) {
			sr.Get("/", a.listAPIServices)
			sr.Put("/{name}", a.saveAPIService)
			sr.Get("/{name}", a.getAPIService)
			sr.Delete("/{name}", a.deleteAPIService)
		})
		tr.Route("/datasources", func(sr chi.Router) {
			sr.Get("/", a.listDatasources)
			sr.Put("/{name}", a.saveDatasource)
			sr.Get("/{name}", a.getDatasource)
			sr.Delete("/{name}", a.deleteDatasource)
		})
		tr.Route("/udfs", func(sr chi.Router) {
			sr.Get("/", a.listUdfs)
			sr.Put("/{name}", a.saveUdf)
			sr.Get("/{name}", a.getUdf)
			sr.Delete("/{name}", a.deleteUdf)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *Router) listAPIServices(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	out, err := a.configStore.ListApiServices(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Router) getAPIService(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	cfg, err := a.configStore.GetApiService(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, errNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) saveAPIService(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	cfg := config.DefaultApiServiceConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg.Name = name
	if err := a.configStore.SaveApiService(r.Context(), tenantID, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) deleteAPIService(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	if err := a.configStore.DeleteApiService(r.Context(), tenantID, name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Router) listDatasources(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	out, err := a.configStore.ListDatasources(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Router) getDatasource(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	cfg, err := a.configStore.GetDatasource(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, errNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) saveDatasource(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	cfg := config.DefaultDatasourceConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg.Name = name
	if err := a.configStore.SaveDatasource(r.Context(), tenantID, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) deleteDatasource(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	if err := a.configStore.DeleteDatasource(r.Context(), tenantID, name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Router) listUdfs(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	out, err := a.configStore.ListUdfs(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *Router) getUdf(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	cfg, err := a.configStore.GetUdf(r.Context(), tenantID, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, errNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) saveUdf(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	var cfg config.UdfConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg.Name = name
	if err := a.configStore.SaveUdf(r.Context(), tenantID, cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *Router) deleteUdf(w http.ResponseWriter, r *http.Request) {
	tenantID, name := chi.URLParam(r, "tenantId"), chi.URLParam(r, "name")
	if err := a.configStore.DeleteUdf(r.Context(), tenantID, name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
