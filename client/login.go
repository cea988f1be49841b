package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// OAuth client identifier pair the Spark cloud expects on the token endpoint.
const (
	oauthClientID     = "spark"
	oauthClientSecret = "spark"
)

// Login requests a new access token with the password grant. The token kept
// on the client is cleared first and only set again on success.
func (c *Client) Login(ctx context.Context, username, password string) (Grant, error) {
	c.SetToken("")
	if username == "" || password == "" {
		return Grant{}, fmt.Errorf("%w: username and password cannot be empty", ErrAuth)
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	req, err := c.createRequest(ctx, http.MethodPost, "/oauth/token", nil, form)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	req.SetBasicAuth(oauthClientID, oauthClientSecret)

	var result loginResponse
	if err := c.doJSON(req, &result); err != nil {
		log.Error().Err(err).Str("username", username).Msg("Cloud login failed")
		return Grant{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	expiresIn, err := result.ExpiresIn.Int64()
	if err != nil || result.AccessToken == "" {
		return Grant{}, fmt.Errorf("%w: token endpoint returned an incomplete grant", ErrAuth)
	}

	grant := Grant{
		Token:     result.AccessToken,
		ExpiresAt: c.now().Add(time.Duration(expiresIn) * time.Second).UTC(),
	}
	c.SetToken(grant.Token)
	log.Info().Time("expires_at", grant.ExpiresAt).Msg("Obtained new access token from cloud")
	return grant, nil
}

// DiscoverTokens lists the tokens already issued to the account and returns
// the one with the latest expiry. It fails with ErrNotFound when the list is
// empty or the credentials are rejected.
func (c *Client) DiscoverTokens(ctx context.Context, username, password string) (Grant, error) {
	if username == "" || password == "" {
		return Grant{}, fmt.Errorf("%w: username and password cannot be empty", ErrNotFound)
	}

	req, err := c.createRequest(ctx, http.MethodGet, "/v1/access_tokens", nil, nil)
	if err != nil {
		return Grant{}, err
	}
	req.SetBasicAuth(username, password)

	var entries []tokenEntry
	if err := c.doJSON(req, &entries); err != nil {
		var se *ServiceError
		if errors.As(err, &se) && se.IsAuthFailure() {
			return Grant{}, fmt.Errorf("%w: credentials rejected: %w", ErrNotFound, err)
		}
		return Grant{}, fmt.Errorf("failed to list access tokens: %w", err)
	}

	var best Grant
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		exp, err := parseTokenExpiry(e.ExpiresAt)
		if err != nil {
			log.Debug().Err(err).Msg("Skipping access token entry")
			continue
		}
		if best.Token == "" || exp.After(best.ExpiresAt) {
			best = Grant{Token: e.Token, ExpiresAt: exp}
		}
	}
	if best.Token == "" {
		return Grant{}, fmt.Errorf("%w: no access tokens on account", ErrNotFound)
	}

	log.Info().Int("count", len(entries)).Time("expires_at", best.ExpiresAt).Msg("Discovered existing access token")
	return best, nil
}
