package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgconsole/internal/models"
)

func TestStruct_login(t *testing.T) {
	tests := []struct {
		name   string
		req    models.LoginRequest
		fields FieldErrors
	}{
		{
			name: "valid",
			req:  models.LoginRequest{Email: "ada@example.com", Password: "secret1"},
		},
		{
			name:   "missing email",
			req:    models.LoginRequest{Password: "secret1"},
			fields: FieldErrors{"email": "email is required"},
		},
		{
			name:   "bad email",
			req:    models.LoginRequest{Email: "nope", Password: "secret1"},
			fields: FieldErrors{"email": "email must be a valid email address"},
		},
		{
			name: "short password",
			req:  models.LoginRequest{Email: "ada@example.com", Password: "12345"},
			fields: FieldErrors{
				"password": "password must be at least 6 characters",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tt.fields, Fields(err))
		})
	}
}

func TestStruct_createOrganization(t *testing.T) {
	err := Struct(models.CreateOrganizationRequest{Logo: "not a url"})
	require.Equal(t, FieldErrors{
		"name":        "name is required",
		"description": "description is required",
		"logo":        "logo must be a valid URL",
	}, Fields(err))

	require.NoError(t, Struct(models.CreateOrganizationRequest{Name: "Acme", Description: "Widgets"}))
}

func TestStruct_updateOrganization(t *testing.T) {
	empty := ""
	err := Struct(models.UpdateOrganizationRequest{Name: &empty})
	require.Equal(t, FieldErrors{"name": "name must be at least 1 characters"}, Fields(err))

	// clearing the logo is allowed
	require.NoError(t, Struct(models.UpdateOrganizationRequest{Logo: &empty}))

	logo := "not a url"
	err = Struct(models.UpdateOrganizationRequest{Logo: &logo})
	require.Equal(t, FieldErrors{"logo": "logo must be a valid URL"}, Fields(err))

	logo = "https://example.com/logo.png"
	require.NoError(t, Struct(models.UpdateOrganizationRequest{Logo: &logo}))
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{"b": "b is required", "a": "a is required"}
	require.Equal(t, "a is required; b is required", fe.Error())
	require.Nil(t, Fields(errors.New("boom")))
}
