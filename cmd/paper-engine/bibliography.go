// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-engine/pkg/types"
)

var bibliographyCmd = &cobra.Command{
	Use:     "bibliography",
	Aliases: []string{"bib"},
	Short:   "Compile the daftar pustaka and manage search references",
}

// --- compile ---

var bibCompileCmd = &cobra.Command{
	Use:   "compile [session-id]",
	Short: "Compile a deduplicated bibliography from all validated stages",
	Long: `Compile harvests citation candidates from every validated stage's
reference fields, deduplicates them by URL, DOI, or title/authors/year,
merges duplicates, synthesizes missing citation strings, and sorts the
result. Only callable while the session is on the daftar_pustaka stage.

With --write the compiled entries are persisted into the stage's
daftarPustaka field.`,
	Args: cobra.ExactArgs(1),
	RunE: runBibCompile,
}

func runBibCompile(cmd *cobra.Command, args []string) error {
	includeWeb, _ := cmd.Flags().GetBool("web-references")
	write, _ := cmd.Flags().GetBool("write")

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, warnings, err := engine.CompileDaftarPustaka(context.Background(), args[0], includeWeb, write)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	return writeYAML(result)
}

// --- append-refs ---

var bibAppendCmd = &cobra.Command{
	Use:   "append-refs [session-id]",
	Short: "Append web-search references to the current stage",
	Long: `Append-refs reads a YAML list of references from --file and merges them
into the current stage's web-search reference list, deduplicating by
normalized URL. On the gagasan and topik stages the references are also
written into the stage's native referensi field.`,
	Args: cobra.ExactArgs(1),
	RunE: runBibAppend,
}

func runBibAppend(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		return fmt.Errorf("--file is required")
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading references file: %w", err)
	}
	var refs []types.BibliographyCandidate
	if err := yaml.Unmarshal(raw, &refs); err != nil {
		return fmt.Errorf("parsing references file: %w", err)
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	added, err := engine.AppendSearchReferences(context.Background(), args[0], refs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d reference(s) added\n", added)
	return nil
}

func init() {
	bibCompileCmd.Flags().Bool("web-references", true, "include web-search reference lists")
	bibCompileCmd.Flags().Bool("write", false, "persist compiled entries into the daftar_pustaka stage")
	bibAppendCmd.Flags().String("file", "", "YAML file with a list of references")

	bibliographyCmd.AddCommand(bibCompileCmd, bibAppendCmd)
	rootCmd.AddCommand(bibliographyCmd)
}
