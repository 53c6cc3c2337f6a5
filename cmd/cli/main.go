// Package main is the terminal front end: one download per invocation,
// progress rendered as a text bar, exit code from the terminal phase.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/engine"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/supervisor"
	"github.com/streamsaavy/streamsaavy-go/pkg/logger"
)

const progressBarWidth = 50

func main() {
	var (
		modeToken = flag.String("mode", string(domain.ModeSingleSong), "download mode (see -list-modes)")
		url       = flag.String("url", "", "video or playlist URL")
		dest      = flag.String("dest", "", "destination directory (default ~/Downloads)")
		bitrate   = flag.Int("bitrate", 0, "audio bitrate in kbps (default 256)")
		maxHeight = flag.Int("max-height", 0, "maximum video height (default 1080)")
		cookies   = flag.String("cookies", "", "credentials (cookies) file")
		noThumb   = flag.Bool("no-thumbnail", false, "skip embedding the thumbnail")
		noMeta    = flag.Bool("no-metadata", false, "skip embedding metadata tags")
		verbose   = flag.Bool("verbose", false, "print every engine log line")
		listModes = flag.Bool("list-modes", false, "list supported modes and exit")
	)
	flag.Parse()

	logger.Setup(&logger.Config{Level: "warn", Format: "text"})

	if *listModes {
		for _, m := range domain.ModesView() {
			fmt.Printf("  %-16s %s\n", m.Token, m.Label)
		}
		return
	}

	req, err := domain.NewDownloadRequest(domain.RequestParams{
		URL:              *url,
		DestinationPath:  *dest,
		Mode:             *modeToken,
		AudioBitrateKbps: *bitrate,
		MaxVideoHeight:   *maxHeight,
		EmbedThumbnail:   !*noThumb,
		EmbedMetadata:    !*noMeta,
		CredentialsFile:  *cookies,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	builder := plan.Builder{DefaultCredentialsFile: plan.DiscoverDefaultCredentials()}
	sup := supervisor.New(engine.New(engine.DefaultConfig()))

	fmt.Println("Starting download...")
	handle, err := sup.Start(builder.Build(req), renderObserver(*verbose))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-interrupt:
		fmt.Println("\nCanceling... partial files may remain.")
		handle.Cancel()
		<-handle.Done()
	case <-handle.Done():
	}

	snap := sup.Snapshot()
	switch snap.Phase {
	case domain.PhaseCompleted:
		fmt.Println("\nDownload completed successfully!")
	default:
		fmt.Fprintln(os.Stderr, "\nDownload failed:", snap.LastError)
		if snap.ErrorKind == domain.KindFormatUnavailable {
			fmt.Fprintln(os.Stderr, "Hint: retry with -mode", string(domain.ModeCompatibility))
		}
		os.Exit(1)
	}
}

// renderObserver prints progress as a bar and stage notes as lines.
func renderObserver(verbose bool) supervisor.Observer {
	return func(ev domain.Event) {
		switch ev.Type {
		case domain.EventProgress:
			filled := int(progressBarWidth * ev.Percent / 100)
			bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
			fmt.Printf("\rProgress: [%s] %.1f%% ", bar, ev.Percent)
		case domain.EventStage:
			fmt.Println("\nTranscoding, please wait...")
		case domain.EventLogLine:
			if verbose {
				fmt.Printf("\n%s", ev.Text)
			}
		case domain.EventFinished:
			if ev.OutputPath != "" {
				fmt.Printf("\nSaved: %s\n", ev.OutputPath)
			}
		}
	}
}
