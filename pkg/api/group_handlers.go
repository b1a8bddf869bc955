package api

import (
	"net/http"

	"github.com/aravindb26/middleware-sub022/pkg/httputil"
	"github.com/aravindb26/middleware-sub022/pkg/resource"
)

// listGroups handles GET /api/v1/contexts/{cid}/groups
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}

	groups, err := s.service.ListGroups(r.Context(), contextID)
	if err != nil {
		s.log.WithError(err).Error("list groups failed", "context", contextID)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}

// getGroup handles GET /api/v1/contexts/{cid}/groups/{id}
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	groupID, ok := httputil.ParsePathIntOrError(w, r, "id")
	if !ok {
		return
	}

	group, err := s.service.GetGroup(r.Context(), contextID, groupID)
	if err != nil {
		if !resource.IsNotFound(err) {
			s.log.WithError(err).Error("get group failed", "context", contextID, "group", groupID)
		}
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// searchGroups handles GET /api/v1/contexts/{cid}/groups/search
func (s *Server) searchGroups(w http.ResponseWriter, r *http.Request) {
	contextID, ok := httputil.ParsePathIntOrError(w, r, "cid")
	if !ok {
		return
	}
	pattern := httputil.ParseQueryString(r, "pattern", "")
	if !httputil.RequireNonEmpty(w, pattern, "pattern") {
		return
	}

	groups, err := s.service.SearchGroups(r.Context(), contextID, pattern)
	if err != nil {
		s.log.WithError(err).Error("search groups failed", "context", contextID, "pattern", pattern)
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}
