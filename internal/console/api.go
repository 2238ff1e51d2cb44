package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfeidau/orgconsole/internal/auth"
	"github.com/wolfeidau/orgconsole/internal/client"
	"github.com/wolfeidau/orgconsole/internal/models"
)

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Authenticated: s.session.IsAuthenticated()}
	if resp.Authenticated {
		resp.User = s.session.CurrentUser()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type permissionsResponse struct {
	auth.Permissions
	Members map[string]bool `json:"members"`
}

func (s *Server) apiPermissions(w http.ResponseWriter, r *http.Request) {
	org, err := s.backend.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		status := client.StatusCode(err)
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		writeJSON(w, r, status, map[string]any{
			"success": false,
			"message": client.Message(err),
		})
		return
	}

	perms := auth.For(s.session.UserID(), org)
	resp := permissionsResponse{
		Permissions: perms,
		Members:     make(map[string]bool, len(org.Members)),
	}
	for _, m := range org.Members {
		resp.Members[m.User.ID] = perms.CanManage(m)
	}

	writeJSON(w, r, http.StatusOK, resp)
}
