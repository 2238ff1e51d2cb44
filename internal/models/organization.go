package models

// Organization is a workspace owning an ordered set of members.
type Organization struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Logo        string               `json:"logo,omitempty"`
	Owner       string               `json:"owner"`
	Members     []OrganizationMember `json:"members"`
}

// Member returns the member record for userID, if present.
func (o *Organization) Member(userID string) (OrganizationMember, bool) {
	if o == nil || userID == "" {
		return OrganizationMember{}, false
	}
	for _, m := range o.Members {
		if m.User.ID == userID {
			return m, true
		}
	}
	return OrganizationMember{}, false
}

// MemberUser is the user summary embedded in a membership.
type MemberUser struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// OrganizationMember relates a user to an organization with a role.
type OrganizationMember struct {
	User MemberUser `json:"user"`
	Role Role       `json:"role"`
}

// CreateOrganizationRequest is the payload for POST /organizations.
type CreateOrganizationRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Logo        string `json:"logo,omitempty" validate:"omitempty,url"`
}

// UpdateOrganizationRequest is the payload for PUT /organizations/{id}.
// Nil fields are left unchanged by the backend, an empty Logo clears it.
type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	Logo        *string `json:"logo,omitempty" validate:"omitempty,optional_url"`
}

// MemberAction is the action for POST /organizations/{id}/users/{userId}.
type MemberAction string

const (
	MemberActionAdd    MemberAction = "add"
	MemberActionRemove MemberAction = "remove"
)

// ManageMemberRequest adds or removes a member.
type ManageMemberRequest struct {
	Action MemberAction `json:"action"`
	Role   Role         `json:"role,omitempty"`
}

// UpdateRoleRequest is the payload for PUT /organizations/{id}/users/{userId}/role.
type UpdateRoleRequest struct {
	Role Role `json:"role"`
}
