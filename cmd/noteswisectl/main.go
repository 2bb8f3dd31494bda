package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/ai"
	"github.com/vnmchuo/noteswise/internal/logger"
	"github.com/vnmchuo/noteswise/internal/provider/elevenlabs"
	"github.com/vnmchuo/noteswise/internal/telemetry"
)

func main() {
	if err := newRootCommand(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds state shared by every subcommand.
type cli struct {
	service    *ai.Service
	outputJSON bool
	verbose    bool
}

// newRootCommand builds the command tree. A nil service is built from the
// environment before the first subcommand runs.
func newRootCommand(service *ai.Service) *cobra.Command {
	c := &cli{service: service}

	rootCmd := &cobra.Command{
		Use:   "noteswisectl",
		Short: "NotesWise AI CLI",
		Long: `Run the NotesWise AI operations from a terminal: summaries, free text,
flashcards and audio, against the providers configured for the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.service != nil {
				return nil
			}
			svc, err := serviceFromEnv(c.verbose)
			if err != nil {
				return err
			}
			c.service = svc
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "log provider calls to stderr")

	rootCmd.AddCommand(c.newProvidersCommand())
	rootCmd.AddCommand(c.newHealthCommand())
	rootCmd.AddCommand(c.newSummarizeCommand())
	rootCmd.AddCommand(c.newTextCommand())
	rootCmd.AddCommand(c.newFlashcardsCommand())
	rootCmd.AddCommand(c.newAudioCommand())

	return rootCmd
}

func serviceFromEnv(verbose bool) (*ai.Service, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	zlog := zap.NewNop()
	if verbose {
		zlog, err = logger.New("debug", "console")
		if err != nil {
			return nil, err
		}
	}

	tts, err := elevenlabs.New(cfg.ElevenLabsAPIKey, cfg.ElevenLabsBaseURL, nil, zlog.Named("elevenlabs"))
	if err != nil {
		return nil, err
	}
	factory := ai.NewFactory(cfg.AI, ai.DefaultConstructors(), zlog.Named("ai"))
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	return ai.NewService(factory, tts, metrics, noop.NewTracerProvider().Tracer("noteswisectl"), zlog.Named("ai")), nil
}

// readInput takes the text from --file, then from args, then from stdin.
func readInput(cmd *cobra.Command, file string, args []string) (string, error) {
	var text string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		text = string(data)
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no input: pass text as arguments, --file or stdin")
	}
	return text, nil
}

func (c *cli) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printTable(cmd *cobra.Command, headers []string, rows [][]string) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
