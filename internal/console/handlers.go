package console

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/orgconsole/internal/auth"
	"github.com/wolfeidau/orgconsole/internal/client"
	"github.com/wolfeidau/orgconsole/internal/models"
	"github.com/wolfeidau/orgconsole/internal/session"
	"github.com/wolfeidau/orgconsole/internal/telemetry"
	"github.com/wolfeidau/orgconsole/internal/validate"
)

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.session.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login", view{Title: "Sign in"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req := models.LoginRequest{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	v := view{Title: "Sign in", Form: map[string]string{"email": req.Email}}

	if err := validate.Struct(req); err != nil {
		v.Fields = validate.Fields(err)
		s.render(w, r, http.StatusUnprocessableEntity, "login", v)
		return
	}

	if _, err := s.session.Login(r.Context(), s.backend, req); err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("login failed")
		v.Error = authFailure(err)
		s.render(w, r, http.StatusUnauthorized, "login", v)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	if s.session.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "register", view{Title: "Register"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req := models.RegisterRequest{
		Name:     strings.TrimSpace(r.PostForm.Get("name")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	v := view{Title: "Register", Form: map[string]string{"name": req.Name, "email": req.Email}}

	if err := validate.Struct(req); err != nil {
		v.Fields = validate.Fields(err)
		s.render(w, r, http.StatusUnprocessableEntity, "register", v)
		return
	}

	if _, err := s.session.Register(r.Context(), s.backend, req); err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("registration failed")
		v.Error = authFailure(err)
		s.render(w, r, http.StatusBadRequest, "register", v)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to clear session")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type dashboardData struct {
	Organizations []models.Organization
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, view{Title: "Dashboard"})
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, v view) {
	orgs, err := s.backend.ListOrganizations(r.Context())
	if err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		// an empty list is shown alongside the error
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load organizations")
		if v.Error == "" {
			v.Error = "Failed to load organizations: " + client.Message(err)
		}
	}

	v.Data = dashboardData{Organizations: orgs}
	s.render(w, r, status, "dashboard", v)
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req := models.CreateOrganizationRequest{
		Name:        strings.TrimSpace(r.PostForm.Get("name")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		Logo:        strings.TrimSpace(r.PostForm.Get("logo")),
	}
	v := view{
		Title: "Dashboard",
		Form: map[string]string{
			"name":        req.Name,
			"description": req.Description,
			"logo":        req.Logo,
		},
	}

	if err := validate.Struct(req); err != nil {
		v.Fields = validate.Fields(err)
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, v)
		return
	}

	org, err := s.backend.CreateOrganization(r.Context(), req)
	if err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		v.Error = "Failed to create organization: " + client.Message(err)
		s.renderDashboard(w, r, http.StatusBadGateway, v)
		return
	}

	target := "/dashboard"
	if org != nil && org.ID != "" {
		target = "/organizations/" + url.PathEscape(org.ID)
	}
	redirectWithNotice(w, r, target, "Organization created")
}

type memberRow struct {
	Member    models.OrganizationMember
	CanManage bool
	Removing  bool
}

type organizationData struct {
	Organization *models.Organization
	Permissions  auth.Permissions
	Members      []memberRow
	Available    []models.User
}

func (s *Server) organization(w http.ResponseWriter, r *http.Request) {
	s.renderOrganization(w, r, http.StatusOK, view{})
}

// renderOrganization loads the organization and evaluates the viewer's
// permissions from the freshly loaded membership.
func (s *Server) renderOrganization(w http.ResponseWriter, r *http.Request, status int, v view) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "orgID")

	org, err := s.backend.GetOrganization(ctx, orgID)
	if err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		if client.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("orgID", orgID).Msg("failed to load organization")
		redirectWithNotice(w, r, "/dashboard", "Failed to load organization: "+client.Message(err))
		return
	}

	perms := auth.For(s.session.UserID(), org)

	data := organizationData{
		Organization: org,
		Permissions:  perms,
		Members:      make([]memberRow, 0, len(org.Members)),
	}
	for _, m := range org.Members {
		data.Members = append(data.Members, memberRow{
			Member:    m,
			CanManage: perms.CanManage(m),
			Removing:  s.removals.active(removalKey(org.ID, m.User.ID)),
		})
	}

	if perms.ManageMembers {
		users, err := s.backend.RemainingUsers(ctx, orgID)
		if err != nil {
			if s.handleUnauthorized(w, r, err) {
				return
			}
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to load available users")
		}
		data.Available = users
	}

	v.Title = org.Name
	v.Data = data
	s.render(w, r, status, "organization", v)
}

// loadPermissions fetches the organization and evaluates the viewer's
// permissions. It writes the response itself when it returns false.
func (s *Server) loadPermissions(w http.ResponseWriter, r *http.Request) (*models.Organization, auth.Permissions, bool) {
	orgID := chi.URLParam(r, "orgID")

	org, err := s.backend.GetOrganization(r.Context(), orgID)
	if err != nil {
		if s.handleUnauthorized(w, r, err) {
			return nil, auth.Permissions{}, false
		}
		if client.IsNotFound(err) {
			http.NotFound(w, r)
			return nil, auth.Permissions{}, false
		}
		redirectWithNotice(w, r, organizationPath(orgID), "Failed to load organization: "+client.Message(err))
		return nil, auth.Permissions{}, false
	}

	return org, auth.For(s.session.UserID(), org), true
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	org, perms, ok := s.loadPermissions(w, r)
	if !ok {
		return
	}
	if !s.allowed(w, r, perms.Require(auth.PermUpdateOrganization)) {
		return
	}

	name := strings.TrimSpace(r.PostForm.Get("name"))
	description := strings.TrimSpace(r.PostForm.Get("description"))
	logo := strings.TrimSpace(r.PostForm.Get("logo"))
	req := models.UpdateOrganizationRequest{
		Name:        &name,
		Description: &description,
		Logo:        &logo,
	}

	if err := validate.Struct(req); err != nil {
		s.renderOrganization(w, r, http.StatusUnprocessableEntity, view{Fields: validate.Fields(err)})
		return
	}

	if _, err := s.backend.UpdateOrganization(r.Context(), org.ID, req); err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		s.renderOrganization(w, r, http.StatusBadGateway, view{Error: "Failed to update organization: " + client.Message(err)})
		return
	}

	redirectWithNotice(w, r, organizationPath(org.ID), "Organization updated")
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	org, perms, ok := s.loadPermissions(w, r)
	if !ok {
		return
	}
	if !s.allowed(w, r, perms.Require(auth.PermDeleteOrganization)) {
		return
	}

	if err := s.backend.DeleteOrganization(r.Context(), org.ID); err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		s.renderOrganization(w, r, http.StatusBadGateway, view{Error: "Failed to delete organization: " + client.Message(err)})
		return
	}

	redirectWithNotice(w, r, "/dashboard", "Organization deleted")
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	org, perms, ok := s.loadPermissions(w, r)
	if !ok {
		return
	}
	if !s.allowed(w, r, perms.Require(auth.PermAddMember)) {
		return
	}

	userID := strings.TrimSpace(r.PostForm.Get("userId"))
	if userID == "" {
		s.renderOrganization(w, r, http.StatusUnprocessableEntity, view{Error: "Select a user to add"})
		return
	}
	role := models.ParseRole(r.PostForm.Get("role"))
	if !auth.CanAssign(perms.Role, role) {
		s.allowed(w, r, auth.ErrForbidden)
		return
	}

	if _, err := s.backend.AddMember(r.Context(), org.ID, userID, role); err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		s.renderOrganization(w, r, http.StatusBadGateway, view{Error: "Failed to add member: " + client.Message(err)})
		return
	}

	redirectWithNotice(w, r, organizationPath(org.ID), "Member added")
}

// targetMember resolves the {userID} route parameter against org.
func (s *Server) targetMember(w http.ResponseWriter, r *http.Request, org *models.Organization) (models.OrganizationMember, bool) {
	userID := chi.URLParam(r, "userID")
	member, ok := org.Member(userID)
	if !ok {
		redirectWithNotice(w, r, organizationPath(org.ID), "That user is no longer a member")
		return models.OrganizationMember{}, false
	}
	return member, true
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	org, perms, ok := s.loadPermissions(w, r)
	if !ok {
		return
	}
	member, ok := s.targetMember(w, r, org)
	if !ok {
		return
	}
	if !s.allowed(w, r, perms.RequireMember(auth.PermChangeRole, member)) {
		return
	}

	role := models.ParseRole(r.PostForm.Get("role"))
	if !auth.CanAssign(perms.Role, role) {
		s.allowed(w, r, auth.ErrForbidden)
		return
	}

	if _, err := s.backend.UpdateMemberRole(r.Context(), org.ID, member.User.ID, role); err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		s.renderOrganization(w, r, http.StatusBadGateway, view{Error: "Failed to update role: " + client.Message(err)})
		return
	}

	redirectWithNotice(w, r, organizationPath(org.ID), "Role updated")
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	org, perms, ok := s.loadPermissions(w, r)
	if !ok {
		return
	}
	member, ok := s.targetMember(w, r, org)
	if !ok {
		return
	}
	if !s.allowed(w, r, perms.RequireMember(auth.PermRemoveMember, member)) {
		return
	}

	key := removalKey(org.ID, member.User.ID)
	if !s.removals.begin(key) {
		telemetry.GetMetrics().DuplicateRemovalsTotal.Add(r.Context(), 1)
		redirectWithNotice(w, r, organizationPath(org.ID), "Removal already in progress")
		return
	}
	defer s.removals.end(key)

	if err := s.backend.RemoveMember(r.Context(), org.ID, member.User.ID); err != nil {
		if s.handleUnauthorized(w, r, err) {
			return
		}
		redirectWithNotice(w, r, organizationPath(org.ID), "Failed to remove member: "+client.Message(err))
		return
	}

	redirectWithNotice(w, r, organizationPath(org.ID), "Member removed")
}

type profileData struct {
	Token *auth.TokenInfo
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	var data profileData
	if token, ok := s.session.Token(); ok {
		info := auth.InspectToken(token)
		data.Token = &info
	}
	s.render(w, r, http.StatusOK, "profile", view{Title: "Profile", Data: data})
}

// handleUnauthorized sends the user to the login page when the backend
// rejected the session. The transport has already cleared it.
func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !client.IsUnauthorized(err) {
		return false
	}
	zerolog.Ctx(r.Context()).Info().Msg("session rejected by backend")
	s.redirectToLogin(w, r)
	return true
}

// allowed writes a 403 page when err denies the action.
func (s *Server) allowed(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return true
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Msg("action not permitted")
	s.renderOrganization(w, r, http.StatusForbidden, view{Error: "You don't have permission to do that"})
	return false
}

func authFailure(err error) string {
	switch {
	case errors.Is(err, session.ErrAuthRejected):
		msg := strings.TrimSpace(strings.TrimPrefix(err.Error(), session.ErrAuthRejected.Error()+":"))
		if msg == "" {
			return "Invalid email or password"
		}
		return msg
	case errors.Is(err, session.ErrMalformedAuthResponse):
		return "Unexpected response from the server, please try again"
	default:
		return client.Message(err)
	}
}

func organizationPath(id string) string {
	return "/organizations/" + url.PathEscape(id)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, target, notice string) {
	http.Redirect(w, r, target+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
