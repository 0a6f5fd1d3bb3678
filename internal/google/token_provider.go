package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/sheetsgate/internal/logging"
)

// storedTokenSource builds a refreshing token source from an OAuth token file
// and the OAuth client file it was issued for. Refreshed tokens are written
// back to tokenPath.
func storedTokenSource(ctx context.Context, tokenPath, credentialsPath string, scopes []string, logger logging.Logger) (oauth2.TokenSource, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("token file %s requires an OAuth client credentials file", tokenPath)
	}
	clientData, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read OAuth client credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(clientData, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client credentials: %w", err)
	}

	tok, err := readToken(tokenPath)
	if err != nil {
		return nil, err
	}

	return &fileTokenSource{
		base:   conf.TokenSource(ctx, tok),
		path:   tokenPath,
		last:   tok.AccessToken,
		logger: logger,
	}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither an access nor a refresh token", path)
	}
	return &tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// fileTokenSource persists every newly issued access token.
type fileTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger logging.Logger

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource.
func (s *fileTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := writeToken(s.path, tok); err != nil {
			// The refreshed token is still usable for this process.
			s.logger.Warn("Failed to persist refreshed OAuth token", "path", s.path, logging.KeyError, err.Error())
		} else {
			s.logger.Debug("Persisted refreshed OAuth token", "path", s.path)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
