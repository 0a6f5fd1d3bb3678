package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/sheetsgate/internal/logging"
)

// Credential sources, reported by Credentials.Source.
const (
	SourceServiceAccountFile   = "service_account_file"
	SourceServiceAccountConfig = "service_account_config"
	SourceOAuthToken           = "oauth_token"
	SourceDefault              = "application_default"
)

// ErrUnsupportedCredentials is returned when CREDENTIALS_CONFIG holds a key
// type other than a service account.
var ErrUnsupportedCredentials = errors.New("unsupported credentials type")

// Config selects the credential sources. Empty fields are skipped.
type Config struct {
	ServiceAccountPath string
	// CredentialsConfig is a base64 encoded service account key.
	CredentialsConfig string
	TokenPath         string
	CredentialsPath   string
	Scopes            []string
}

// Credentials is a resolved token source and where it came from.
type Credentials struct {
	TokenSource oauth2.TokenSource
	Source      string
	// Subject is the service account email when known.
	Subject string
}

// FindCredentials walks the credential chain and returns the first source
// that is configured. It does not fetch a token.
func FindCredentials(ctx context.Context, cfg Config, logger logging.Logger) (*Credentials, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	if cfg.ServiceAccountPath != "" {
		data, err := os.ReadFile(cfg.ServiceAccountPath)
		switch {
		case err == nil:
			creds, err := serviceAccount(ctx, data, scopes)
			if err != nil {
				return nil, fmt.Errorf("service account %s: %w", cfg.ServiceAccountPath, err)
			}
			creds.Source = SourceServiceAccountFile
			return creds, nil
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("Service account file not found, trying next credential source",
				"path", cfg.ServiceAccountPath)
		default:
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	if cfg.CredentialsConfig != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.CredentialsConfig))
		if err != nil {
			return nil, fmt.Errorf("decode CREDENTIALS_CONFIG: %w", err)
		}
		creds, err := serviceAccount(ctx, data, scopes)
		if err != nil {
			return nil, fmt.Errorf("CREDENTIALS_CONFIG: %w", err)
		}
		creds.Source = SourceServiceAccountConfig
		return creds, nil
	}

	if cfg.TokenPath != "" {
		if _, err := os.Stat(cfg.TokenPath); err == nil {
			ts, err := storedTokenSource(ctx, cfg.TokenPath, cfg.CredentialsPath, scopes, logger)
			if err != nil {
				return nil, err
			}
			return &Credentials{TokenSource: ts, Source: SourceOAuthToken}, nil
		}
	}

	def, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("no credential source configured and application default credentials unavailable: %w", err)
	}
	return &Credentials{TokenSource: def.TokenSource, Source: SourceDefault}, nil
}

type keyFile struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
}

func serviceAccount(ctx context.Context, data []byte, scopes []string) (*Credentials, error) {
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	if kf.Type != "service_account" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCredentials, kf.Type)
	}
	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return &Credentials{TokenSource: conf.TokenSource(ctx), Subject: kf.ClientEmail}, nil
}

// NewHTTPClient returns an HTTP client that authenticates with ts and traces
// outbound calls.
//
// HTTP/2 is disabled on the base transport to avoid stream errors seen with
// long-lived connections to the Google APIs.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: otelhttp.NewTransport(base),
	})
	return oauth2.NewClient(ctx, ts)
}
