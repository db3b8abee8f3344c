package internal

import (
	"context"
	"encoding/json"
	"fmt"
)

// SupportedDescriptorVersion is the only cytrus.json layout this client understands
const SupportedDescriptorVersion = 6

// CytrusDescriptor is the root of cytrus.json
type CytrusDescriptor struct {
	Name    string                     `json:"name"`
	Version int                        `json:"version"`
	Games   map[string]CytrusGameEntry `json:"games"`
}

// CytrusGameEntry lists the released versions of one game per platform and release
type CytrusGameEntry struct {
	Name   string `json:"name"`
	Order  int    `json:"order"`
	GameId int    `json:"gameId"`
	// platform -> release -> version
	Platforms map[string]map[string]string `json:"platforms"`
}

// LatestVersion returns the current version of game on platform for release.
func (d *CytrusDescriptor) LatestVersion(game, platform, release string) (string, error) {
	entry, ok := d.Games[game]
	if !ok {
		return "", fmt.Errorf("could not find the game %s", game)
	}
	releases, ok := entry.Platforms[platform]
	if !ok {
		return "", fmt.Errorf("could not find the platform %s for %s", platform, game)
	}
	version, ok := releases[release]
	if !ok {
		return "", fmt.Errorf("could not find the release %s for %s on %s", release, game, platform)
	}
	return version, nil
}

// ParseDescriptor decodes cytrus.json and rejects unsupported layouts.
func ParseDescriptor(data []byte) (*CytrusDescriptor, error) {
	var descriptor CytrusDescriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if descriptor.Version != SupportedDescriptorVersion {
		return nil, fmt.Errorf("the cytrus version is not supported: expected %d, got %d",
			SupportedDescriptorVersion, descriptor.Version)
	}
	return &descriptor, nil
}

// FetchDescriptor downloads and parses cytrus.json.
func (c *CdnClient) FetchDescriptor(ctx context.Context, policy RetryPolicy) (*CytrusDescriptor, error) {
	data, err := WaitForRetry(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return c.GetBytes(ctx, c.DescriptorURL())
	})
	if err != nil {
		return nil, err
	}
	return ParseDescriptor(data)
}

// ResolveVersion returns version unchanged unless it is "0" or empty, in
// which case the latest version is looked up in the descriptor.
func (c *CdnClient) ResolveVersion(ctx context.Context, policy RetryPolicy, game, version, platform, release string) (string, error) {
	if version != "" && version != "0" {
		return version, nil
	}

	descriptor, err := c.FetchDescriptor(ctx, policy)
	if err != nil {
		return "", err
	}
	latest, err := descriptor.LatestVersion(game, platform, release)
	if err != nil {
		return "", err
	}
	PushLogInfo(nil, fmt.Sprintf("Latest %s version on %s/%s is %s", game, platform, release, latest))
	return latest, nil
}

// FetchManifest downloads and decodes a release manifest.
func (c *CdnClient) FetchManifest(ctx context.Context, policy RetryPolicy, game, release, platform, version string) (*Manifest, error) {
	url := c.ManifestURL(game, release, platform, version)
	PushLogInfo(nil, fmt.Sprintf("Fetching manifest %s", url))

	data, err := WaitForRetry(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return c.GetBytes(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return DecodeManifest(data)
}
