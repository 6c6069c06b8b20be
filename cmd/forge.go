package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"mythforge/pkg/config"
	"mythforge/pkg/inference"
	"mythforge/pkg/oracle"
	"mythforge/pkg/utils"
	"mythforge/pkg/vocabulary"
)

var (
	forgeEvent  string
	forgeTitle  string
	forgeTokens bool
)

// forgeCmd runs one synthesis without touching the database.
var forgeCmd = &cobra.Command{
	Use:   "forge",
	Short: "Dry-run a synthesis for one life event",
	RunE:  runForge,
}

var vocabularyCmd = &cobra.Command{
	Use:   "vocabulary",
	Short: "Print the deity registry",
	Run: func(cmd *cobra.Command, _ []string) {
		reg := vocabulary.Default()
		for _, label := range reg.Labels() {
			marker := ""
			if label == reg.Fallback() {
				marker = " (fallback)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", label, marker)
		}
	},
}

func init() {
	forgeCmd.Flags().StringVarP(&forgeEvent, "event", "e", "", "life event to retell")
	forgeCmd.Flags().StringVarP(&forgeTitle, "title", "t", "", "myth title")
	forgeCmd.Flags().BoolVar(&forgeTokens, "tokens", false, "estimate the prompt size after synthesis (may fetch the tokenizer)")
	_ = forgeCmd.MarkFlagRequired("event")
}

func runForge(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gen, err := newGenerator(ctx, cfg.Generation)
	if err != nil {
		return err
	}
	o := oracle.New(gen, nil, oracleOptions(cfg, nil)...)

	syn, err := o.Synthesize(ctx, forgeEvent)
	if err != nil {
		return err
	}

	trace := make([]string, len(syn.Trace))
	for i, s := range syn.Trace {
		trace[i] = s.String()
	}

	title := strings.TrimSpace(forgeTitle)
	if title == "" {
		title = oracle.DefaultTitle
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", title)
	fmt.Fprintf(out, "Deity:    %s\n", syn.Label)
	fmt.Fprintf(out, "Trace:    %s\n", strings.Join(trace, " → "))
	fmt.Fprintf(out, "Verdict:  %s (calls=%d repaired=%t coerced=%t", syn.Verdict, syn.Calls, syn.Repaired, syn.Coerced)
	if syn.Reason != inference.ReasonNone {
		fmt.Fprintf(out, " reason=%s", syn.Reason)
	}
	fmt.Fprintf(out, ")\n\n%s\n", syn.Narrative)

	if forgeTokens {
		system, user := oracle.SystemPrompt(o.Registry), oracle.UserPrompt(forgeEvent)
		if n, err := utils.PromptTokens(cfg.Generation.Model, system, user); err == nil {
			log.Info("prompt size", "tokens", n)
		} else {
			log.Warn("token estimate unavailable", "error", err)
		}
	}
	return nil
}

// newGenerator builds the generator named by g.Provider.
func newGenerator(ctx context.Context, g config.Generation) (inference.Generator, error) {
	if g.Provider == config.ProviderGemini {
		gen, err := inference.NewGeminiGenerator(ctx, g.APIKey, g.Model, g.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		gen.SetMaxTokens(int32(g.MaxTokens))
		gen.SetTimeout(g.Timeout)
		return gen, nil
	}

	gen, err := inference.NewPresetGenerator(g.Provider, g.APIKey, g.Model)
	if err != nil {
		return nil, err
	}
	if g.BaseURL != "" {
		gen.ChangeBaseURL(g.BaseURL)
	}
	gen.SetMaxTokens(int64(g.MaxTokens))
	gen.SetTimeout(g.Timeout)
	return gen, nil
}
