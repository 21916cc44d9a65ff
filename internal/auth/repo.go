package auth

import (
	"context"
	"net/http"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
)

// Endpoint paths relative to the API root.
const (
	PathCurrentUser    = "auth/user/"
	PathLogin          = "auth/login/"
	PathLogout         = "auth/logout/"
	PathPasswordChange = "auth/password/change/"
)

// Repository is the remote account API.
type Repository interface {
	CurrentUser(ctx context.Context) (*User, error)
	Login(ctx context.Context, creds Credentials) (*LoginReply, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error)
	ChangePassword(ctx context.Context, change PasswordChange) error
}

// APIRepository implements Repository over the desk API.
type APIRepository struct {
	client api.Requester
}

// NewRepository constructs an API-backed repository.
func NewRepository(client api.Requester) *APIRepository {
	return &APIRepository{client: client}
}

// CurrentUser fetches the profile for the stored credential.
func (r *APIRepository) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := r.client.Request(ctx, http.MethodGet, PathCurrentUser, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token.
func (r *APIRepository) Login(ctx context.Context, creds Credentials) (*LoginReply, error) {
	resp, err := r.client.Request(ctx, http.MethodPost, PathLogin, creds)
	if err != nil {
		return nil, err
	}
	var reply LoginReply
	if err := resp.Decode(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Logout invalidates the token server-side.
func (r *APIRepository) Logout(ctx context.Context) error {
	_, err := r.client.Request(ctx, http.MethodPost, PathLogout, nil)
	return err
}

// UpdateProfile patches the current user and returns the stored result.
func (r *APIRepository) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	resp, err := r.client.Request(ctx, http.MethodPatch, PathCurrentUser, update)
	if err != nil {
		return nil, err
	}
	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword submits a password change.
func (r *APIRepository) ChangePassword(ctx context.Context, change PasswordChange) error {
	_, err := r.client.Request(ctx, http.MethodPost, PathPasswordChange, change)
	return err
}
