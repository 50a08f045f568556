package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/go-github/v74/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"golang.org/x/oauth2"
)

// AuthService resolves the GitHub token. An explicit token (flag or
// GITHUB_TOKEN) wins over the saved one.
type AuthService struct {
	token     string
	configDir string
	baseURL   string
}

type AuthOption func(*AuthService)

// WithConfigDir changes where the token file is stored
func WithConfigDir(dir string) AuthOption {
	return func(s *AuthService) {
		s.configDir = dir
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(url string) AuthOption {
	return func(s *AuthService) {
		s.baseURL = url
	}
}

func NewAuthService(token string, opts ...AuthOption) *AuthService {
	homeDir, _ := os.UserHomeDir()
	s := &AuthService{
		token:     token,
		configDir: filepath.Join(homeDir, ".config", "octgate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ interfaces.AuthService = (*AuthService)(nil)

type tokenData struct {
	AccessToken string `json:"access_token"`
}

func (s *AuthService) tokenPath() string {
	return filepath.Join(s.configDir, "token.json")
}

func (s *AuthService) GetToken(ctx context.Context) (string, error) {
	if s.token != "" {
		return s.token, nil
	}

	data, err := os.ReadFile(s.tokenPath()) // #nosec G304 - path is constructed from a fixed directory
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", domain.ErrConfiguration.Wrap(err)
	}

	var token tokenData
	if err := json.Unmarshal(data, &token); err != nil {
		return "", domain.ErrConfiguration.Wrap(err)
	}
	return token.AccessToken, nil
}

func (s *AuthService) SaveToken(ctx context.Context, token string) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}

	jsonData, err := json.MarshalIndent(tokenData{AccessToken: token}, "", "  ")
	if err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}

	if err := os.WriteFile(s.tokenPath(), jsonData, 0600); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	return nil
}

func (s *AuthService) GetAuthenticatedClient(ctx context.Context) (*github.Client, error) {
	token, err := s.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrAuthentication.Wrap(goerr.New("no GitHub token: set GITHUB_TOKEN or run `octgate auth login`"))
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if s.baseURL != "" {
		client, err = client.WithEnterpriseURLs(s.baseURL, s.baseURL)
		if err != nil {
			return nil, domain.ErrConfiguration.Wrap(err)
		}
	}
	return client, nil
}
