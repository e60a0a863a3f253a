package updatesvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/release/pkg/validator"
)

const DefaultFeedURL = "https://api.github.com/repos/rijieli/Release/releases/latest"

type Feed interface {
	Latest(ctx context.Context) (Release, error)
}

type GitHubFeedConfig struct {
	URL        string       `validate:"required,url"`
	Token      string       // optional, raises the rate limit
	HTTPClient *http.Client `validate:"required"`
}

type GitHubFeed struct {
	Config GitHubFeedConfig
}

var _ Feed = (*GitHubFeed)(nil)

func NewGitHubFeed(cfg GitHubFeedConfig) (*GitHubFeed, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("error validate release feed: %w", err)
	}

	return &GitHubFeed{Config: cfg}, nil
}

func (g *GitHubFeed) Latest(ctx context.Context) (release Release, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Config.URL, nil)
	if err != nil {
		err = fmt.Errorf("build release feed request: %w", err)
		return
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Config.Token)
	}

	resp, err := g.Config.HTTPClient.Do(req)
	if err != nil {
		err = fmt.Errorf("fetch latest release: %w", err)
		return
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		err = &HTTPError{Code: resp.StatusCode}
		return
	}

	if err = json.NewDecoder(resp.Body).Decode(&release); err != nil {
		err = fmt.Errorf("decode latest release: %w", err)
		return
	}

	return
}
