package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/riverfog7/CytrusClient/internal"
)

// Define command structs
type ReleaseRef struct {
	Game     string `arg:"positional,required" help:"Game name (e.g. dofus)"`
	Version  string `arg:"positional,required" help:"Version to fetch, or 0 for the latest"`
	Platform string `arg:"positional" help:"windows, linux or darwin (default: windows)"`
	Release  string `arg:"positional" help:"main or beta (default: main)"`
}

type ManifestInfoCmd struct {
	ReleaseRef
	OutputPath string `arg:"-O,--json-out" default:"-" help:"Path to output JSON file or - for stdout"`
}

type DownloadCmd struct {
	ReleaseRef
}

// Root command struct
type Args struct {
	ManifestInfo *ManifestInfoCmd `arg:"subcommand:manifestinfo" help:"Fetch a manifest and print a summary as JSON"`
	Download     *DownloadCmd     `arg:"subcommand:download" help:"Download or update a game"`

	Output         string `arg:"-o,--output,env:CYTRUS_OUTPUT" default:"./out" help:"Root directory of downloaded games"`
	BaseURL        string `arg:"--base-url,env:CYTRUS_BASE_URL" default:"https://cytrus.cdn.ankama.com" help:"Cytrus CDN address"`
	Concurrency    int    `arg:"-j,--concurrency" help:"Bundles fetched at the same time (default: 2 x CPU count, -1 for no limit)"`
	MaxConnections int    `arg:"--max-connections" default:"128" help:"Max. connections of the HTTP client"`
	Retries        int    `arg:"--retries" default:"5" help:"Attempts per download"`
	MaxSpeed       int64  `arg:"--max-speed" help:"Download limit in bytes per second, 0 for unlimited"`
	Loose          bool   `arg:"--loose" help:"Also fetch files that are not part of any bundle"`
	StagingDir     string `arg:"--staging-dir" help:"Directory for temporary bundle blobs (default: next to the files)"`
	NoProgress     bool   `arg:"--no-progress" help:"Disable the progress bar"`
	Verbose        bool   `arg:"-v,--verbose" help:"Print debug messages"`
}

const (
	defaultPlatform = "windows"
	defaultRelease  = "main"
)

func (r *ReleaseRef) applyDefaults() {
	if r.Platform == "" {
		r.Platform = defaultPlatform
	}
	if r.Release == "" {
		r.Release = defaultRelease
	}
}

func main() {
	var args Args
	parser, err := arg.NewParser(arg.Config{Program: "cytrus"}, &args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	err = parser.Parse(os.Args[1:])
	switch {
	case errors.Is(err, arg.ErrHelp):
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		parser.WriteUsage(os.Stderr)
		os.Exit(1)
	}

	installLogHandler(args.Verbose)

	switch {
	case args.ManifestInfo != nil:
		args.ManifestInfo.applyDefaults()
		os.Exit(ManifestInfoCommand(&args, args.ManifestInfo))

	case args.Download != nil:
		args.Download.applyDefaults()
		os.Exit(DownloadCommand(&args, args.Download))

	default:
		fmt.Fprintln(os.Stderr, "ERROR: no subcommand specified")
		parser.WriteUsage(os.Stderr)
		os.Exit(1)
	}
}

func installLogHandler(verbose bool) {
	internal.SetLogHandler(func(sender interface{}, log internal.LogStruct) {
		if log.LogLevel == internal.Debug && !verbose {
			return
		}
		fmt.Fprintf(os.Stderr, "[%v] %s\n", log.LogLevel, log.Message)
	})
}
