package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const maxRemoteBytes = 1 << 20

type propertySource struct {
	Name   string         `json:"name"`
	Source map[string]any `json:"source"`
}

type remoteEnvironment struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	PropertySources []propertySource `json:"propertySources"`
}

// Fetch asks the config server at baseURL for this loader's application and
// profile and layers the returned property sources over the local file.
// Environment variables still win. The remote layer is kept, so later file
// reloads and Watch callbacks see it too; calling Fetch again replaces it.
func (l *Loader) Fetch(ctx context.Context, client *http.Client, baseURL, profile string) (*Config, error) {
	endpoint, err := url.JoinPath(baseURL, l.name, profile)
	if err != nil {
		return nil, fmt.Errorf("config server url %q: %w", baseURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var env remoteEnvironment
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", endpoint, err)
	}

	remote := make(map[string]any)
	// Sources arrive most specific first.
	for i := len(env.PropertySources) - 1; i >= 0; i-- {
		for key, value := range env.PropertySources[i].Source {
			setPath(remote, strings.Split(strings.ToLower(key), "."), value)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Start over from the local file so keys dropped remotely disappear.
	if l.v.ConfigFileUsed() != "" {
		err = l.v.ReadInConfig()
	} else {
		err = l.v.ReadConfig(strings.NewReader(""))
	}
	if err != nil {
		return nil, err
	}
	l.remote = remote
	if err := l.v.MergeConfigMap(remote); err != nil {
		return nil, fmt.Errorf("merging remote config: %w", err)
	}

	slog.Info("loaded remote config",
		slog.String("url", endpoint),
		slog.Int("sources", len(env.PropertySources)))

	return l.decode()
}

// reapplyRemote merges the remote layer back after viper re-read the file.
func (l *Loader) reapplyRemote() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remote != nil {
		if err := l.v.MergeConfigMap(l.remote); err != nil {
			return nil, err
		}
	}
	return l.decode()
}

// setPath stores value under the nested keys of path, replacing any scalar
// that is in the way.
func setPath(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
