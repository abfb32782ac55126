package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/services"
)

var knowledgeDir string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "traitctl",
		Short:        "Inspect trait matching, roadmaps and topic detection offline",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&knowledgeDir, "knowledge-dir", "", "knowledge base override directory (defaults to the embedded copy)")

	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(roadmapCmd())
	rootCmd.AddCommand(detectCmd())
	return rootCmd
}

func loadKB() (*knowledge.Base, error) {
	return knowledge.Load(logger.Nop(), knowledgeDir)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchCmd() *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a genetic report against the trait reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if reportPath != "" && reportPath != "-" {
				f, err := os.Open(reportPath)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var report services.GeneticReport
			if err := json.NewDecoder(r).Decode(&report); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}

			kb, err := loadKB()
			if err != nil {
				return err
			}
			matcher, err := services.NewTraitMatcher(kb)
			if err != nil {
				return err
			}
			traits, err := matcher.Match(report.Markers())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), traits)
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "-", "report JSON file ('-' reads stdin)")
	return cmd
}

func roadmapCmd() *cobra.Command {
	var traits string
	var ageMonths int

	cmd := &cobra.Command{
		Use:   "roadmap",
		Short: "Print milestone buckets for trait names or gene ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKB()
			if err != nil {
				return err
			}
			buckets := services.NewMilestoneComputer(kb).Compute(splitList(traits), ageMonths)
			return printJSON(cmd.OutOrStdout(), buckets)
		},
	}

	cmd.Flags().StringVar(&traits, "traits", "", "comma-separated trait names or gene ids")
	cmd.Flags().IntVar(&ageMonths, "age-months", -1, "child age in months (negative means unknown)")
	_ = cmd.MarkFlagRequired("traits")
	return cmd
}

func detectCmd() *cobra.Command {
	var traits string

	cmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Detect medical topics and emergency flags in a parent message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKB()
			if err != nil {
				return err
			}
			detector, err := services.NewTopicDetector(kb)
			if err != nil {
				return err
			}
			var child []types.MatchedTrait
			for _, name := range splitList(traits) {
				ref, ok := kb.Trait(name)
				if !ok {
					return fmt.Errorf("unknown trait %q", name)
				}
				child = append(child, types.MatchedTrait{TraitName: ref.TraitName, GeneID: ref.GeneID, Category: ref.Category})
			}
			turn := types.Turn{Speaker: "parent", Text: strings.Join(args, " ")}
			return printJSON(cmd.OutOrStdout(), detector.Detect([]types.Turn{turn}, child))
		},
	}

	cmd.Flags().StringVar(&traits, "traits", "", "comma-separated trait names the child carries")
	return cmd
}
