package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/aravindb26/middleware-sub022/pkg/events"
	"github.com/aravindb26/middleware-sub022/pkg/httputil"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// listResources handles GET /api/v1/contexts/{cid}/resources
func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}

	resources, err := s.service.List(r.Context(), contextID)
	if err != nil {
		s.log.WithError(err).Error("list resources failed", "context", contextID)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, resources)
}

// getResource handles GET /api/v1/contexts/{cid}/resources/{id}
func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	resourceID, ok := httputil.ParsePathIntOrError(w, r, "id")
	if !ok {
		return
	}

	res, err := s.service.Get(r.Context(), contextID, resourceID)
	if err != nil {
		if !resource.IsNotFound(err) {
			s.log.WithError(err).Error("get resource failed", "context", contextID, "resource", resourceID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// getResourceByName handles GET /api/v1/contexts/{cid}/resources/byname/{name}
func (s *Server) getResourceByName(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	res, err := s.service.GetByName(r.Context(), contextID, name)
	if err != nil {
		s.log.WithError(err).Error("get resource by name failed", "context", contextID, "name", name)
		httputil.WriteDomainError(w, err)
		return
	}
	if res == nil {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "resource "+name+" not found")
		return
	}
	httputil.WriteSuccess(w, res)
}

// createResource handles POST /api/v1/contexts/{cid}/resources
func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}

	var res resource.Resource
	if !httputil.ParseJSONOrError(w, r, &res) {
		return
	}
	if res.ID <= 0 {
		httputil.WriteBadRequest(w, "id must be positive")
		return
	}
	if !httputil.RequireNonEmpty(w, res.Name, "name") {
		return
	}

	if err := s.service.Create(r.Context(), contextID, &res); err != nil {
		if !resource.IsValidation(err) {
			s.log.WithError(err).Error("create resource failed", "context", contextID, "resource", res.ID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, res)
}

// updateResource handles PUT /api/v1/contexts/{cid}/resources/{id}
func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	resourceID, ok := httputil.ParsePathIntOrError(w, r, "id")
	if !ok {
		return
	}

	var res resource.Resource
	if !httputil.ParseJSONOrError(w, r, &res) {
		return
	}
	res.ID = resourceID
	if !httputil.RequireNonEmpty(w, res.Name, "name") {
		return
	}

	if err := s.service.Update(r.Context(), contextID, &res); err != nil {
		if !resource.IsValidation(err) && !resource.IsNotFound(err) {
			s.log.WithError(err).Error("update resource failed", "context", contextID, "resource", resourceID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// deleteResource handles DELETE /api/v1/contexts/{cid}/resources/{id}
func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	resourceID, ok := httputil.ParsePathIntOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.service.Delete(r.Context(), contextID, resourceID); err != nil {
		if !resource.IsNotFound(err) {
			s.log.WithError(err).Error("delete resource failed", "context", contextID, "resource", resourceID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// searchResources handles GET /api/v1/contexts/{cid}/resources/search
func (s *Server) searchResources(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	pattern := httputil.ParseQueryString(r, "pattern", "")
	if !httputil.RequireNonEmpty(w, pattern, "pattern") {
		return
	}
	userID, err := httputil.ParseQueryInt(r, "user", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var resources []*resource.Resource
	if httputil.ParseQueryString(r, "by", "") == "mail" {
		resources, err = s.service.SearchByMail(r.Context(), contextID, pattern)
	} else {
		resources, err = s.service.Search(r.Context(), contextID, pattern, userID)
	}
	if err != nil {
		s.log.WithError(err).Error("search resources failed", "context", contextID, "pattern", pattern)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, resources)
}

// searchByPrivilege handles GET /api/v1/contexts/{cid}/resources/byprivilege
func (s *Server) searchByPrivilege(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}

	entities, ok := parseEntities(w, httputil.ParseQueryString(r, "entities", ""))
	if !ok {
		return
	}

	raw := httputil.ParseQueryString(r, "privilege", "")
	privilege := resource.ParseSchedulingPrivilege(raw)
	if privilege == resource.PrivilegeNone {
		httputil.WriteBadRequest(w, "privilege must be one of BOOK_DIRECTLY, ASK_TO_BOOK, DELEGATE")
		return
	}

	resources, err := s.service.SearchByPrivilege(r.Context(), contextID, entities, privilege)
	if err != nil {
		s.log.WithError(err).Error("search by privilege failed", "context", contextID, "privilege", string(privilege))
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, resources)
}

// listModified handles GET /api/v1/contexts/{cid}/resources/modified
func (s *Server) listModified(w http.ResponseWriter, r *http.Request) {
	s.listSince(w, r, s.service.ListModified)
}

// listDeleted handles GET /api/v1/contexts/{cid}/resources/deleted
func (s *Server) listDeleted(w http.ResponseWriter, r *http.Request) {
	s.listSince(w, r, s.service.ListDeleted)
}

func (s *Server) listSince(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, contextID int, since int64) ([]*resource.Resource, error)) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	since, err := httputil.ParseQueryInt64(r, "since", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resources, err := list(r.Context(), contextID, since)
	if err != nil {
		s.log.WithError(err).Error("list resources since failed", "context", contextID, "since", since)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, resources)
}

// recordUse handles POST /api/v1/contexts/{cid}/resources/{id}/use
func (s *Server) recordUse(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	resourceID, ok := httputil.ParsePathIntOrError(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		User int `json:"user"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if body.User <= 0 {
		httputil.WriteBadRequest(w, "user must be positive")
		return
	}

	if err := s.service.RecordUse(r.Context(), contextID, body.User, resourceID); err != nil {
		if !resource.IsNotFound(err) {
			s.log.WithError(err).Error("record use failed", "context", contextID, "resource", resourceID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// entityDeleted handles POST /api/v1/contexts/{cid}/entities/deleted
func (s *Server) entityDeleted(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}

	var body struct {
		Kind            string `json:"kind"`
		Entity          int    `json:"entity"`
		DestinationUser int    `json:"destination_user"`
		Admin           int    `json:"admin"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	var kind events.Kind
	switch strings.ToLower(body.Kind) {
	case "user":
		kind = events.KindUser
	case "group":
		kind = events.KindGroup
	default:
		httputil.WriteBadRequest(w, "kind must be user or group")
		return
	}
	if body.Entity <= 0 {
		httputil.WriteBadRequest(w, "entity must be positive")
		return
	}

	ev := events.NewDeleteEvent(kind, contextID, body.Entity, body.DestinationUser, body.Admin)
	if err := s.service.EntityDeleted(r.Context(), ev); err != nil {
		s.log.WithError(err).Error("entity delete cascade failed",
			"context", contextID, "kind", body.Kind, "entity", body.Entity)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"event": ev.ID.String()})
}

// parseEntities parses the comma-separated entities query parameter.
func parseEntities(w http.ResponseWriter, raw string) ([]int, bool) {
	if raw == "" {
		httputil.WriteBadRequest(w, "entities is required")
		return nil, false
	}
	parts := strings.Split(raw, ",")
	entities := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			httputil.WriteBadRequest(w, "invalid entity id: "+part)
			return nil, false
		}
		entities = append(entities, id)
	}
	return entities, true
}
