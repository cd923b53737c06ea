package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage ingested sources",
	Long:  `List, inspect, delete or reprocess ingested sources and their fragments.`,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources of a sector",
	Args:  cobra.NoArgs,
	RunE:  runSourceList,
}

var sourceGetCmd = &cobra.Command{
	Use:   "get [source-id]",
	Short: "Show source details",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceGet,
}

var sourceFragmentsCmd = &cobra.Command{
	Use:   "fragments [source-id]",
	Short: "List a source's fragments in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceFragments,
}

var sourceDeleteCmd = &cobra.Command{
	Use:   "delete [source-id]",
	Short: "Soft-delete a source and remove its fragments",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceDelete,
}

var sourceReprocessCmd = &cobra.Command{
	Use:   "reprocess [source-id]",
	Short: "Re-chunk and re-embed a source",
	Long:  `Rebuilds a completed source's fragments from its stored content, for example after changing the chunking settings.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceReprocess,
}

var sourceTagCmd = &cobra.Command{
	Use:   "tag [fragment-id]",
	Short: "Merge metadata into a fragment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceTag,
}

var (
	sourceSector string
	sourceLimit  int
	sourceOffset int
	tagMetadata  map[string]string
)

func init() {
	sourceListCmd.Flags().StringVarP(&sourceSector, "sector", "s", "", "Sector to list (required)")
	sourceListCmd.Flags().IntVarP(&sourceLimit, "limit", "n", 20, "Maximum sources to list")
	sourceListCmd.Flags().IntVar(&sourceOffset, "offset", 0, "Sources to skip")
	sourceTagCmd.Flags().StringToStringVarP(&tagMetadata, "meta", "m", nil, "Metadata as key=value pairs")

	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceGetCmd)
	sourceCmd.AddCommand(sourceFragmentsCmd)
	sourceCmd.AddCommand(sourceDeleteCmd)
	sourceCmd.AddCommand(sourceReprocessCmd)
	sourceCmd.AddCommand(sourceTagCmd)
	rootCmd.AddCommand(sourceCmd)
}

var errSourceServiceMissing = errors.New("source service not configured")

func runSourceList(cmd *cobra.Command, _ []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}
	if sourceSector == "" {
		return errors.New("--sector is required")
	}

	sources, err := deps.Sources.ListBySector(cmd.Context(), sourceSector, sourceLimit, sourceOffset)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, sources)
	}
	if len(sources) == 0 {
		cmd.Printf("No sources found in sector: %s\n", sourceSector)
		return nil
	}

	cmd.Printf("Sources in sector %s:\n\n", sourceSector)
	for _, s := range sources {
		cmd.Printf("  %s\n", s.ID)
		cmd.Printf("    Title:  %s\n", s.Title)
		cmd.Printf("    Kind:   %s\n", s.Kind)
		cmd.Printf("    Status: %s\n", s.Status)
		cmd.Println()
	}
	cmd.Printf("Total: %d sources\n", len(sources))
	return nil
}

func runSourceGet(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}

	source, err := deps.Sources.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, source)
	}

	cmd.Printf("Source: %s\n\n", source.ID)
	cmd.Printf("  Title:    %s\n", source.Title)
	cmd.Printf("  Sector:   %s\n", source.SectorID)
	cmd.Printf("  Kind:     %s\n", source.Kind)
	cmd.Printf("  Status:   %s\n", source.Status)
	if source.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", source.ErrorMessage)
	}
	cmd.Printf("  Size:     %d bytes\n", len(source.Content))
	cmd.Printf("  Created:  %s\n", source.CreatedAt.Format(timeLayout))
	cmd.Printf("  Updated:  %s\n", source.UpdatedAt.Format(timeLayout))
	if source.DeletedAt != nil {
		cmd.Printf("  Deleted:  %s\n", source.DeletedAt.Format(timeLayout))
	}

	if len(source.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		keys := make([]string, 0, len(source.Metadata))
		for k := range source.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s: %s\n", k, source.Metadata[k])
		}
	}
	return nil
}

func runSourceFragments(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}

	fragments, err := deps.Sources.Fragments(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list fragments: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, fragments)
	}
	if len(fragments) == 0 {
		cmd.Printf("No fragments found for source: %s\n", args[0])
		return nil
	}

	for _, f := range fragments {
		cmd.Printf("  #%d %s (%d tokens)\n", f.Position, f.ID, f.TokenCount)
		cmd.Printf("      %s\n", preview(f.Content, 100))
	}
	cmd.Printf("\nTotal: %d fragments\n", len(fragments))
	return nil
}

func runSourceDelete(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}

	if err := deps.Sources.SoftDelete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	cmd.Printf("Source %s deleted\n", args[0])
	return nil
}

func runSourceReprocess(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}

	result, err := deps.Sources.Reprocess(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to reprocess source: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, result)
	}
	cmd.Printf("Reprocessed %s: %d fragments\n", result.SourceID, result.FragmentCount)
	return nil
}

func runSourceTag(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Sources == nil {
		return errSourceServiceMissing
	}
	if len(tagMetadata) == 0 {
		return errors.New("at least one --meta key=value is required")
	}

	if err := deps.Sources.MergeFragmentMetadata(cmd.Context(), args[0], tagMetadata); err != nil {
		return fmt.Errorf("failed to tag fragment: %w", err)
	}
	cmd.Printf("Fragment %s updated\n", args[0])
	return nil
}
