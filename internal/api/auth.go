package api

import (
	"context"
	"net/http"

	"github.com/masjid-network/masjidctl/internal/token"
)

// Login exchanges credentials for a token pair and the user record.
// The tokens are persisted before returning. A 401 here fails straight
// through: refreshing makes no sense for a call that never had a session.
func (c *Client) Login(ctx context.Context, creds Credentials) (*User, error) {
	var resp authResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/login/",
		json:      creds,
		skipAuth:  true,
		noRefresh: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.tokens.Set(resp.pair())
	c.cache.purgeAll()
	return resp.User, nil
}

// Register creates an account. The payload is multipart form data because
// of the optional profile image; the transport computes the boundary header.
// Like Login, a 401 fails straight through.
func (c *Client) Register(ctx context.Context, form RegisterForm) (*User, error) {
	if err := validateForm(form); err != nil {
		return nil, err
	}
	mp := &multipartForm{
		fields: map[string]string{
			"username":   form.Username,
			"email":      form.Email,
			"password":   form.Password,
			"first_name": form.FirstName,
			"last_name":  form.LastName,
			"phone":      form.Phone,
		},
		files: map[string]FileAttachment{},
	}
	if form.ProfileImage != nil {
		mp.files["profile_image"] = *form.ProfileImage
	}

	var resp authResponse
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/register/",
		form:      mp,
		skipAuth:  true,
		noRefresh: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.tokens.Set(resp.pair())
	c.cache.purgeAll()
	return resp.User, nil
}

// Me fetches the current user record.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/auth/me/",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout notifies the backend that this session ends. It does not clear
// local tokens; the session service owns that and does it unconditionally.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/logout/",
	}, nil)
}

// ChangePassword asks the backend to replace the account password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/change_password/",
		json: map[string]string{
			"old_password":         oldPassword,
			"new_password":         newPassword,
			"new_password_confirm": confirm,
		},
	}, nil)
}

// RequestPasswordReset asks the backend to email a reset token. It runs
// unauthenticated: the caller has, by definition, no working session.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/forgot_password/",
		json:      map[string]string{"email": email},
		skipAuth:  true,
		noRefresh: true,
	}, nil)
}

// ResetPassword redeems an emailed reset token for a new password.
func (c *Client) ResetPassword(ctx context.Context, uid, resetToken, newPassword, confirm string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/reset_password/",
		json: map[string]string{
			"uid":                  uid,
			"token":                resetToken,
			"new_password":         newPassword,
			"new_password_confirm": confirm,
		},
		skipAuth:  true,
		noRefresh: true,
	}, nil)
}

// UpdateProfile applies a partial JSON profile update and returns the
// updated user record.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/auth/update_profile/",
		json:   update,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfileImage replaces the profile image via a multipart update.
func (c *Client) UpdateProfileImage(ctx context.Context, image FileAttachment) (*User, error) {
	var user User
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/auth/update_profile/",
		form: &multipartForm{
			files: map[string]FileAttachment{"profile_image": image},
		},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteAccount removes the account server-side and clears local tokens.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/auth/delete_account/",
	}, nil); err != nil {
		return err
	}
	c.tokens.Clear()
	c.cache.purgeAll()
	return nil
}

// AccessToken returns the currently stored access token, if any.
func (c *Client) AccessToken() string {
	return c.tokens.Get(token.KindAccess)
}
