// File: internal/mail/client.go
package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher performs one JSON request. network.Fetcher satisfies it.
type Fetcher interface {
	DoJSON(ctx context.Context, method, url string, header http.Header, in, out interface{}) error
}

// Domain is a receiving domain offered by the provider.
type Domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

// Address is a message participant.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// MessageSummary is one entry of the inbox listing.
type MessageSummary struct {
	ID        string  `json:"id"`
	From      Address `json:"from"`
	Subject   string  `json:"subject"`
	Intro     string  `json:"intro"`
	Seen      bool    `json:"seen"`
	CreatedAt string  `json:"createdAt"`
}

// Message is a full message. HTML holds the HTML body parts, if any.
type Message struct {
	ID      string   `json:"id"`
	From    Address  `json:"from"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    []string `json:"html"`
}

type collection[T any] struct {
	Members []T `json:"hydra:member"`
}

// Client talks to a mail.tm compatible API.
type Client struct {
	baseURL string
	fetcher Fetcher
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, fetcher Fetcher) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// Domains lists the receiving domains.
func (c *Client) Domains(ctx context.Context) ([]Domain, error) {
	var out collection[Domain]
	if err := c.fetcher.DoJSON(ctx, http.MethodGet, c.baseURL+"/domains", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return out.Members, nil
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, address, password string) (string, error) {
	in := map[string]string{"address": address, "password": password}
	var out struct {
		ID      string `json:"id"`
		Address string `json:"address"`
	}
	if err := c.fetcher.DoJSON(ctx, http.MethodPost, c.baseURL+"/accounts", nil, in, &out); err != nil {
		return "", fmt.Errorf("failed to create account %s: %w", address, err)
	}
	return out.ID, nil
}

// Token logs in and returns the bearer token and account id.
func (c *Client) Token(ctx context.Context, address, password string) (token, id string, err error) {
	in := map[string]string{"address": address, "password": password}
	var out struct {
		Token string `json:"token"`
		ID    string `json:"id"`
	}
	if err := c.fetcher.DoJSON(ctx, http.MethodPost, c.baseURL+"/token", nil, in, &out); err != nil {
		return "", "", fmt.Errorf("failed to log in as %s: %w", address, err)
	}
	if out.Token == "" {
		return "", "", fmt.Errorf("login for %s returned no token", address)
	}
	return out.Token, out.ID, nil
}

// Messages lists the first page of the inbox, newest first.
func (c *Client) Messages(ctx context.Context, token string) ([]MessageSummary, error) {
	var out collection[MessageSummary]
	if err := c.fetcher.DoJSON(ctx, http.MethodGet, c.baseURL+"/messages?page=1", bearer(token), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out.Members, nil
}

// Message fetches one message in full.
func (c *Client) Message(ctx context.Context, token, id string) (*Message, error) {
	var out Message
	if err := c.fetcher.DoJSON(ctx, http.MethodGet, c.baseURL+"/messages/"+url.PathEscape(id), bearer(token), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	return &out, nil
}
