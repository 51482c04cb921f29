package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/config"
	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
	"github.com/devicelab-dev/a11y-runner/pkg/provider/bridge"
	"github.com/devicelab-dev/a11y-runner/pkg/provider/mock"
	"github.com/devicelab-dev/a11y-runner/pkg/provider/webax"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Provider names accepted by --provider.
const (
	ProviderBridge = "bridge"
	ProviderWeb    = "web"
	ProviderMock   = "mock"
)

// providerConfig is the provider part of the global flags.
type providerConfig struct {
	Kind     string
	Bridge   string
	CDPURL   string
	URL      string
	Headless bool
	Scene    string
}

func providerConfigFrom(c *cli.Context) providerConfig {
	return providerConfig{
		Kind:     c.String("provider"),
		Bridge:   c.String("bridge"),
		CDPURL:   c.String("cdp-url"),
		URL:      c.String("url"),
		Headless: c.Bool("headless"),
		Scene:    c.String("scene"),
	}
}

// openProvider connects to the configured provider. cleanup is never nil.
func openProvider(ctx context.Context, pc providerConfig) (tree.Provider, func(), error) {
	noop := func() {}
	switch pc.Kind {
	case ProviderMock:
		if pc.Scene == "" {
			return nil, noop, core.ErrMissingRequired.WithMessage("--scene is required for the mock provider")
		}
		scene, err := mock.LoadScene(pc.Scene)
		if err != nil {
			return nil, noop, err
		}
		return mock.NewFromScene(clock.Real{}, scene), noop, nil

	case ProviderBridge:
		client := bridge.Dial(pc.Bridge)
		p := bridge.New(client)
		ready, err := p.Ready(ctx)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		if !ready {
			logger.Named("cli").Warnw("bridge has no application attached yet", "bridge", pc.Bridge)
		}
		return p, client.Close, nil

	case ProviderWeb:
		var (
			p   *webax.Provider
			err error
		)
		if pc.CDPURL != "" {
			p, err = webax.Connect(ctx, pc.CDPURL)
		} else {
			p, err = webax.Launch(ctx, pc.Headless)
		}
		if err != nil {
			return nil, noop, err
		}
		if pc.URL != "" {
			if err := p.Navigate(ctx, pc.URL); err != nil {
				p.Close()
				return nil, noop, fmt.Errorf("navigate to %s: %w", pc.URL, err)
			}
		}
		return p, p.Close, nil

	default:
		return nil, noop, core.ErrInvalidConfig.WithMessage(
			fmt.Sprintf("unknown provider %q (want bridge, web or mock)", pc.Kind))
	}
}

// openEngine opens a provider and wraps it in an engine configured from s.
func openEngine(ctx context.Context, pc providerConfig, s *config.Settings, worker int) (*locator.Engine, func(), error) {
	p, cleanup, err := openProvider(ctx, pc)
	if err != nil {
		return nil, cleanup, err
	}
	log := logger.Named("locator")
	if worker > 0 {
		log = log.With("worker", worker)
	}
	return locator.New(p, s.LocatorOptions(), locator.WithLogger(log)), cleanup, nil
}
