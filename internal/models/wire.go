package models

import "strings"

// The backend is inconsistent about identifier keys: records may carry
// `_id`, `id`, or both. The Wire* types accept either and Normalize maps them
// onto the canonical types. Nothing outside this file should need to care.

// WireUser is a user record as sent by the backend.
type WireUser struct {
	MongoID        string   `json:"_id,omitempty"`
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
	Organizations  []string `json:"organizations,omitempty"`
}

// Identifier returns the first non-empty identifier, preferring `_id`.
func (w *WireUser) Identifier() string {
	return firstID(w.MongoID, w.ID)
}

// Normalize converts the wire record into a canonical User.
func (w *WireUser) Normalize() *User {
	if w == nil {
		return nil
	}
	return &User{
		ID:             w.Identifier(),
		Name:           w.Name,
		Email:          w.Email,
		ProfilePicture: w.ProfilePicture,
		Organizations:  w.Organizations,
	}
}

// WireMemberUser is the user summary embedded in a wire membership.
type WireMemberUser struct {
	MongoID        string `json:"_id,omitempty"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// WireMember is a membership as sent by the backend.
type WireMember struct {
	User WireMemberUser `json:"user"`
	Role string         `json:"role"`
}

// Normalize converts the wire membership into a canonical OrganizationMember.
func (w WireMember) Normalize() OrganizationMember {
	return OrganizationMember{
		User: MemberUser{
			ID:             firstID(w.User.MongoID, w.User.ID),
			Name:           w.User.Name,
			Email:          w.User.Email,
			ProfilePicture: w.User.ProfilePicture,
		},
		Role: ParseRole(w.Role),
	}
}

// NormalizeMembers converts a list of wire memberships.
func NormalizeMembers(in []WireMember) []OrganizationMember {
	out := make([]OrganizationMember, 0, len(in))
	for _, m := range in {
		out = append(out, m.Normalize())
	}
	return out
}

// WireOrganization is an organization as sent by the backend.
type WireOrganization struct {
	MongoID     string       `json:"_id,omitempty"`
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Logo        string       `json:"logo,omitempty"`
	Owner       string       `json:"owner"`
	Members     []WireMember `json:"members"`
}

// Normalize converts the wire record into a canonical Organization.
func (w *WireOrganization) Normalize() *Organization {
	if w == nil {
		return nil
	}
	return &Organization{
		ID:          firstID(w.MongoID, w.ID),
		Name:        w.Name,
		Description: w.Description,
		Logo:        w.Logo,
		Owner:       w.Owner,
		Members:     NormalizeMembers(w.Members),
	}
}

// NormalizeOrganizations converts a list of wire organizations.
func NormalizeOrganizations(in []WireOrganization) []Organization {
	out := make([]Organization, 0, len(in))
	for i := range in {
		out = append(out, *in[i].Normalize())
	}
	return out
}

// NormalizeUsers converts a list of wire users.
func NormalizeUsers(in []WireUser) []User {
	out := make([]User, 0, len(in))
	for i := range in {
		out = append(out, *in[i].Normalize())
	}
	return out
}

func firstID(ids ...string) string {
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}
