// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openreview

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Authenticator logs in with an email and password pair.
type Authenticator struct {
	baseURL string
	creds   types.Credentials
}

// NewAuthenticator returns an Authenticator against the API at baseURL
// (DefaultBaseURL when empty).
func NewAuthenticator(baseURL string, creds types.Credentials) *Authenticator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Authenticator{baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

// Login implements httputil.Authenticator.
func (a *Authenticator) Login(ctx context.Context, c *httputil.Client) (string, error) {
	if !a.creds.Complete() {
		return "", &types.ConfigurationError{Source: string(types.SourceOpenReview), Message: "email and password are required"}
	}
	body := map[string]string{"id": a.creds.Email, "password": a.creds.Password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.PostJSONAnonymous(ctx, a.baseURL+"/login", body, &resp); err != nil {
		return "", fmt.Errorf("openreview login: %w", err)
	}
	return resp.Token, nil
}
