package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/config"
	"github.com/bbarnes4318/hoppy/internal/dataset"
	"github.com/bbarnes4318/hoppy/internal/diarization"
	"github.com/bbarnes4318/hoppy/internal/extractor"
	"github.com/bbarnes4318/hoppy/internal/ingest"
	"github.com/bbarnes4318/hoppy/internal/ledger"
	"github.com/bbarnes4318/hoppy/internal/logger"
	"github.com/bbarnes4318/hoppy/internal/media"
	"github.com/bbarnes4318/hoppy/internal/pipeline"
	"github.com/bbarnes4318/hoppy/internal/processor"
	"github.com/bbarnes4318/hoppy/internal/transcription"
)

var runCmd = &cobra.Command{
	Use:   "run [input]",
	Short: "Process a list file, directory, or workbook of recordings",
	Long: "Processes every recording named by input (default input.path) in order. " +
		"Input may be a newline-delimited list, a directory of media files, or an .xlsx workbook.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		input := cfg.Input.Path
		if len(args) == 1 {
			input = args[0]
		}
		skip, _ := cmd.Flags().GetBool("skip-existing")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		locators, err := dataset.Enumerate(input)
		if err != nil {
			return eris.Wrapf(err, "read input %s", input)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var recorder pipeline.Recorder
		if cfg.Ledger.Path != "" {
			lg, err := openLedger(ctx, cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer lg.Close()
			recorder = lg
		}

		runID := uuid.New().String()
		started := time.Now()
		writer := aggregator.NewWriter(cfg.Dirs.Transcripts, cfg.Dirs.Analysis, runID, started)

		proc, err := buildProcessor(cfg, writer, log)
		if err != nil {
			return err
		}
		p := pipeline.New(proc, recorder, pipeline.Options{
			RunID:        runID,
			Input:        input,
			SkipExisting: skip || cfg.Input.SkipExisting,
			Done:         writer.Done,
			Limit:        limit,
		}, log)

		rep := p.Run(ctx, locators)
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		formatTally(os.Stdout, rep.Tally)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("skip-existing", false, "skip items whose analysis file already exists")
	runCmd.Flags().Int("limit", 0, "process at most this many items (0 = all)")
	runCmd.Flags().Bool("json", false, "print the run report as JSON")
	rootCmd.AddCommand(runCmd)
}

// buildProcessor wires every stage collaborator from configuration.
func buildProcessor(c *config.Config, store processor.Store, log *logger.Logger) (*processor.Processor, error) {
	acq := media.NewAcquirer(media.Options{
		Dir:             c.Dirs.Audio,
		CompressAbove:   c.Media.CompressAbove(),
		SplitAbove:      c.Media.SplitAbove(),
		SegmentSeconds:  c.Media.SegmentSeconds,
		DownloadTimeout: c.Media.DownloadTimeout(),
		ExtractTimeout:  c.Media.ExtractTimeout(),
		MinBytes:        c.Media.MinBytes,
	}, &http.Client{}, media.NewFFmpeg(c.Media.FFmpegPath), media.NewYTDLP(c.Media.YTDLPPath), log)

	tier, err := transcription.TierByName(c.Transcription.Tier, c.Transcription.ForceTiny)
	if err != nil {
		return nil, eris.Wrap(err, "transcription tier")
	}
	engine := transcription.NewHTTPEngine(c.Transcription.BaseURL, tier,
		transcription.WithAPIKey(c.Transcription.APIKey),
		transcription.WithLanguage(c.Transcription.Language),
		transcription.WithHTTPClient(&http.Client{Timeout: c.Transcription.Timeout()}),
		transcription.WithReclaimEvery(c.Transcription.ReclaimEvery),
		transcription.WithLogger(log),
	)

	var diarizer diarization.Diarizer
	if c.Diarization.BaseURL != "" {
		diarizer = diarization.NewClient(c.Diarization.BaseURL, c.Diarization.Token,
			&http.Client{Timeout: c.Diarization.Timeout()})
	} else {
		log.Warn("diarization.base_url not set, speakers will be labeled Unknown")
	}

	analyzer := extractor.NewAnalyzer(chatClient(c.Analysis, log), c.Analysis.MaxTranscriptChars, c.Analysis.Timeout(), log)

	deps := processor.Deps{
		Acquirer:       acq,
		Engine:         engine,
		Attributor:     diarization.NewAttributor(diarizer, log),
		Analyzer:       analyzer,
		Store:          store,
		SegmentSeconds: c.Media.SegmentSeconds,
	}
	if c.Ingest.URL != "" {
		deps.Ingester = ingest.NewClient(c.Ingest.URL, c.Ingest.Token, c.Ingest.Timeout())
	}
	return processor.New(deps, log), nil
}

func chatClient(a config.AnalysisConfig, log *logger.Logger) extractor.ChatClient {
	if a.Provider == "anthropic" {
		var opts []option.RequestOption
		if a.BaseURL != "" && a.BaseURL != defaultAnalysisBaseURL {
			opts = append(opts, option.WithBaseURL(a.BaseURL))
		}
		return extractor.NewAnthropicChat(a.APIKey, a.Model, int64(a.MaxTokens), a.Temperature, opts...)
	}
	return extractor.NewOpenAIChat(a.BaseURL, a.APIKey, a.Model,
		extractor.WithMaxTokens(a.MaxTokens),
		extractor.WithTemperature(a.Temperature),
		extractor.WithRetryBudget(a.Timeout()),
		extractor.WithChatLogger(log),
	)
}

// defaultAnalysisBaseURL is the chat-completions default; the Anthropic
// client keeps its own endpoint when this is configured.
const defaultAnalysisBaseURL = "https://api.deepseek.com/v1"

func openLedger(ctx context.Context, path string) (*ledger.Ledger, error) {
	lg, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	if err := lg.Migrate(ctx); err != nil {
		lg.Close()
		return nil, err
	}
	return lg, nil
}
