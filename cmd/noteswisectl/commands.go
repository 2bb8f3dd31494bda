package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/noteswise/internal/provider/elevenlabs"
)

func (c *cli) newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the enabled AI providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := c.service.ListAvailableProviders()
			if c.outputJSON {
				return c.printJSON(cmd, map[string]any{"providers": names})
			}
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name}
			}
			c.printTable(cmd, []string{"PROVIDER"}, rows)
			return nil
		},
	}
}

func (c *cli) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health [provider]",
		Short: "Probe one or all providers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			var health map[string]bool
			if len(args) == 1 {
				health = map[string]bool{args[0]: c.service.IsProviderHealthy(ctx, args[0])}
			} else {
				health = c.service.ProvidersHealth(ctx)
			}

			status := "Unhealthy"
			for _, ok := range health {
				if ok {
					status = "Healthy"
					break
				}
			}

			if c.outputJSON {
				if err := c.printJSON(cmd, map[string]any{"status": status, "providers": health}); err != nil {
					return err
				}
			} else {
				var rows [][]string
				for _, name := range c.service.ListAvailableProviders() {
					if ok, probed := health[name]; probed {
						rows = append(rows, []string{name, strconv.FormatBool(ok)})
						delete(health, name)
					}
				}
				for name, ok := range health {
					rows = append(rows, []string{name, strconv.FormatBool(ok)})
				}
				c.printTable(cmd, []string{"PROVIDER", "HEALTHY"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), status)
			}
			if status != "Healthy" {
				return fmt.Errorf("no healthy provider")
			}
			return nil
		},
	}
}

func (c *cli) newSummarizeCommand() *cobra.Command {
	var providerName, file string
	cmd := &cobra.Command{
		Use:   "summarize [text...]",
		Short: "Summarize a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, file, args)
			if err != nil {
				return err
			}
			res := c.service.SummaryResult(cmdContext(cmd), content, providerName)
			if c.outputJSON {
				return c.printJSON(cmd, map[string]any{
					"summary":   res.Content,
					"provider":  res.Provider,
					"isSuccess": res.Success,
					"error":     res.Error,
				})
			}
			if !res.Success {
				return fmt.Errorf("summary failed: %s", res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "provider to use (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the note from a file")
	return cmd
}

func (c *cli) newTextCommand() *cobra.Command {
	var providerName, file string
	cmd := &cobra.Command{
		Use:   "text [prompt...]",
		Short: "Send a prompt verbatim",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd, file, args)
			if err != nil {
				return err
			}
			text := c.service.GenerateText(cmdContext(cmd), prompt, providerName)
			if text == "" {
				return fmt.Errorf("text generation failed")
			}
			if c.outputJSON {
				return c.printJSON(cmd, map[string]string{"text": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "provider to use (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the prompt from a file")
	return cmd
}

func (c *cli) newFlashcardsCommand() *cobra.Command {
	var providerName, file string
	cmd := &cobra.Command{
		Use:   "flashcards [text...]",
		Short: "Generate flashcards from a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, file, args)
			if err != nil {
				return err
			}
			cards := c.service.GenerateFlashcards(cmdContext(cmd), content, providerName)
			if len(cards) == 0 {
				return fmt.Errorf("no flashcards generated")
			}
			if c.outputJSON {
				return c.printJSON(cmd, map[string]any{"flashcards": cards})
			}
			rows := make([][]string, len(cards))
			for i, card := range cards {
				rows[i] = []string{strconv.Itoa(i + 1), card.Question, card.Answer}
			}
			c.printTable(cmd, []string{"#", "QUESTION", "ANSWER"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "provider to use (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the note from a file")
	return cmd
}

func (c *cli) newAudioCommand() *cobra.Command {
	var voice, file, out string
	cmd := &cobra.Command{
		Use:   "audio [text...]",
		Short: "Synthesize speech; writes MP3 with --out, base64 otherwise",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file, args)
			if err != nil {
				return err
			}
			audio := c.service.SynthesizeAudio(cmdContext(cmd), text, voice)
			if audio == "" {
				return fmt.Errorf("audio synthesis failed")
			}

			if out == "" {
				if c.outputJSON {
					return c.printJSON(cmd, map[string]string{"audioContent": audio})
				}
				fmt.Fprintln(cmd.OutOrStdout(), audio)
				return nil
			}
			data, err := base64.StdEncoding.DecodeString(audio)
			if err != nil {
				return fmt.Errorf("failed to decode audio: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&voice, "voice", elevenlabs.DefaultVoice, "voice name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write decoded MP3 to this path")
	return cmd
}
