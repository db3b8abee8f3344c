package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/riverfog7/CytrusClient/internal"
	"github.com/schollz/progressbar/v3"
)

func newCdnClient(args *Args) *internal.CdnClient {
	// Create HTTP client with connection limits
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: args.MaxConnections,
			MaxConnsPerHost:     args.MaxConnections,
		},
	}
	return internal.NewCdnClient(client, args.BaseURL)
}

func retryPolicy(args *Args) internal.RetryPolicy {
	return internal.RetryPolicy{
		Attempts: args.Retries,
		OnRetry: func(attempt, total int, wait time.Duration, err error) {
			internal.PushLogWarning(nil, fmt.Sprintf("Retrying in %v (%d/%d)", wait, attempt, total))
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fetchManifest(ctx context.Context, cdn *internal.CdnClient, policy internal.RetryPolicy, ref *ReleaseRef) (*internal.Manifest, string, error) {
	version, err := cdn.ResolveVersion(ctx, policy, ref.Game, ref.Version, ref.Platform, ref.Release)
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve the version: %w", err)
	}

	manifest, err := cdn.FetchManifest(ctx, policy, ref.Game, ref.Release, ref.Platform, version)
	if err != nil {
		return nil, "", fmt.Errorf("could not get the manifest: %w", err)
	}
	return manifest, version, nil
}

func DownloadCommand(args *Args, cmd *DownloadCmd) int {
	ctx, cancel := signalContext()
	defer cancel()

	cdn := newCdnClient(args)
	defer cdn.HTTPClient.CloseIdleConnections()
	policy := retryPolicy(args)

	manifest, version, err := fetchManifest(ctx, cdn, policy, &cmd.ReleaseRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	internal.PushLogInfo(nil, fmt.Sprintf("Downloading %s version %s for %s (%s)", cmd.Game, version, cmd.Platform, cmd.Release))

	opts := internal.SyncOptions{
		Game:                 cmd.Game,
		MaxConcurrentBundles: args.Concurrency,
		Retry:                policy,
		MaxBytesPerSecond:    args.MaxSpeed,
		StagingDir:           args.StagingDir,
		LooseFiles:           args.Loose,
	}

	var bar *progressbar.ProgressBar
	if !args.NoProgress {
		bar = progressbar.DefaultBytes(manifest.TotalBundleBytes(), fmt.Sprintf("%s %s", cmd.Game, version))
		var current atomic.Int64
		advance := func(n int64) {
			bar.Set64(current.Add(n))
		}
		opts.OnNetworkRead = advance
		opts.OnBundleComplete = func(bundle *internal.BundleEntry, skipped bool) {
			if skipped {
				advance(bundle.Extent())
			}
		}
	}

	outDir := filepath.Join(args.Output, cmd.Game, cmd.Platform)
	syncer := internal.NewSyncer(cdn, opts)

	err = syncer.SyncManifest(ctx, manifest, outDir)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Download cancelled")
			return 1
		}
		fmt.Fprintf(os.Stderr, "ERROR: could not download the game: %v\n", err)
		return 1
	}

	internal.PushLogInfo(nil, fmt.Sprintf("%s version %s is up to date in %s", cmd.Game, version, outDir))
	return 0
}

func ManifestInfoCommand(args *Args, cmd *ManifestInfoCmd) int {
	ctx, cancel := signalContext()
	defer cancel()

	cdn := newCdnClient(args)
	policy := retryPolicy(args)

	manifest, version, err := fetchManifest(ctx, cdn, policy, &cmd.ReleaseRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	info := internal.Summarize(manifest)
	info.Game = cmd.Game
	info.Version = version
	info.Platform = cmd.Platform
	info.Release = cmd.Release
	info.ManifestURL = cdn.ManifestURL(cmd.Game, cmd.Release, cmd.Platform, version)

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not encode the summary: %v\n", err)
		return 1
	}
	data = append(data, '\n')

	if cmd.OutputPath == "-" {
		os.Stdout.Write(data)
		return 0
	}
	if err := os.WriteFile(cmd.OutputPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not write %s: %v\n", cmd.OutputPath, err)
		return 1
	}
	return 0
}
