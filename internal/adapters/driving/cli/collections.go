package cli

import (
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a document from the collection",
	Long: `Removes every stored chunk of a document. The id is the path the file
was ingested from, or the id printed by add-text.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage collections",
	RunE:  runCollectionsList,
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections with their size and dimensions",
	Args:  cobra.NoArgs,
	RunE:  runCollectionsList,
}

var collectionsPurgeCmd = &cobra.Command{
	Use:   "purge [name]",
	Short: "Delete a collection and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsPurge,
}

func init() {
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsPurgeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	collection := collectionName(p)

	n, err := p.Collections.DeleteDocument(cmd.Context(), collection, args[0])
	if err != nil {
		return err
	}

	cmd.Printf("Deleted %s (%d chunks) from %q.\n", args[0], n, collection)
	return nil
}

func runCollectionsList(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}

	infos, err := p.Collections.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		cmd.Println("No collections.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	current := collectionName(p)
	cmd.Printf("%-24s %8s %10s\n", "NAME", "CHUNKS", "DIMENSIONS")
	for _, info := range infos {
		marker := ""
		if info.Name == current {
			marker = st.Muted.Render(" (current)")
		}
		cmd.Printf("%-24s %8d %10d%s\n", info.Name, info.Count, info.Dimensions, marker)
	}
	return nil
}

func runCollectionsPurge(cmd *cobra.Command, args []string) error {
	p, err := openPipeline(cmd)
	if err != nil {
		return err
	}

	if err := p.Collections.Purge(cmd.Context(), args[0]); err != nil {
		return err
	}

	cmd.Printf("Collection %q purged.\n", args[0])
	return nil
}
