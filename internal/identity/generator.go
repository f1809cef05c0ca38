// File: internal/identity/generator.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// JSONFetcher performs a GET and decodes the JSON body into out.
// network.Fetcher satisfies it.
type JSONFetcher interface {
	GetJSON(ctx context.Context, url string, header http.Header, out interface{}) error
}

// ErrNoResults is returned when the identity service answers without a user.
var ErrNoResults = errors.New("identity service returned no results")

// GeoLocator resolves the caller's country from its public IP address.
type GeoLocator struct {
	fetcher     JSONFetcher
	ipLookupURL string
	geoURL      string
	logger      *zap.Logger
}

// NewGeoLocator creates a GeoLocator from the identity configuration.
func NewGeoLocator(cfg config.IdentityConfig, fetcher JSONFetcher, logger *zap.Logger) *GeoLocator {
	return &GeoLocator{
		fetcher:     fetcher,
		ipLookupURL: cfg.IPLookupURL,
		geoURL:      cfg.GeoLookupURL,
		logger:      observability.OrNop(logger).Named("geo"),
	}
}

// CountryCode returns the two-letter country code of the public IP, or ""
// when either lookup fails. Failures are logged, not returned.
func (g *GeoLocator) CountryCode(ctx context.Context) string {
	var ipResp struct {
		IP string `json:"ip"`
	}
	if err := g.fetcher.GetJSON(ctx, g.ipLookupURL, nil, &ipResp); err != nil {
		g.logger.Warn("Public IP lookup failed.", zap.Error(err))
		return ""
	}
	if ipResp.IP == "" {
		g.logger.Warn("Public IP lookup returned no address.")
		return ""
	}

	var geoResp struct {
		CountryCode string `json:"countryCode"`
	}
	if err := g.fetcher.GetJSON(ctx, g.geoURL+url.PathEscape(ipResp.IP), nil, &geoResp); err != nil {
		g.logger.Warn("Geo lookup failed.", zap.Error(err))
		return ""
	}
	return geoResp.CountryCode
}

// randomUserResponse is the subset of the randomuser.me payload that is used.
type randomUserResponse struct {
	Results []struct {
		Login struct {
			Username string `json:"username"`
		} `json:"login"`
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Location struct {
			Street struct {
				Number json.Number `json:"number"`
				Name   string      `json:"name"`
			} `json:"street"`
			City    string `json:"city"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"location"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"results"`
}

// Service produces synthetic identities from the random user service.
type Service struct {
	cfg     config.IdentityConfig
	fetcher JSONFetcher
	geo     *GeoLocator
	logger  *zap.Logger
}

// NewService creates an identity Service.
func NewService(cfg config.IdentityConfig, fetcher JSONFetcher, logger *zap.Logger) *Service {
	logger = observability.OrNop(logger)
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		geo:     NewGeoLocator(cfg, fetcher, logger),
		logger:  logger.Named("identity"),
	}
}

// Nationality decides the randomuser nat parameter: the configured value,
// else the geo-IP country when enabled, else none.
func (s *Service) Nationality(ctx context.Context) string {
	if s.cfg.Nationality != "" {
		return strings.ToLower(s.cfg.Nationality)
	}
	if !s.cfg.UseGeoLocation {
		return ""
	}
	return strings.ToLower(s.geo.CountryCode(ctx))
}

// Generate fetches one identity. The returned record has no password.
func (s *Service) Generate(ctx context.Context) (Record, error) {
	endpoint := s.cfg.RandomUserURL
	if nat := s.Nationality(ctx); nat != "" {
		endpoint += "?nat=" + url.QueryEscape(nat)
	}

	var resp randomUserResponse
	if err := s.fetcher.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return Record{}, fmt.Errorf("failed to fetch identity: %w", err)
	}
	if len(resp.Results) == 0 {
		return Record{}, ErrNoResults
	}

	u := resp.Results[0]
	loc := u.Location
	rec := Record{
		Username: u.Login.Username,
		Name:     strings.TrimSpace(u.Name.First + " " + u.Name.Last),
		Address: fmt.Sprintf("%s %s, %s, %s, %s",
			loc.Street.Number.String(), loc.Street.Name, loc.City, loc.State, loc.Country),
		Phone: u.Phone,
		Email: u.Email,
	}
	s.logger.Debug("Identity generated.", zap.String("username", rec.Username))
	return rec, nil
}
