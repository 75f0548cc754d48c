package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/galileo0/galileo/internal/knowledge"
)

var (
	vectorsCollection string
	vectorsCreate     bool
	vectorsRebuild    bool
	vectorsUpdate     bool
	vectorsDelete     bool
	vectorsView       bool
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Manage the SQL example vector collections",
	Long: `Manages the vector collections backing example retrieval.

  --create   create the collection if missing and embed the knowledge base
  --rebuild  drop and re-embed from scratch
  --update   embed only knowledge-base entries not yet stored
  --delete   drop the collection
  --view     list collections with vector counts`,
	RunE: runVectors,
}

func init() {
	vectorsCmd.Flags().StringVar(&vectorsCollection, "collection", "", "collection name (default from config)")
	vectorsCmd.Flags().BoolVar(&vectorsCreate, "create", false, "create and embed")
	vectorsCmd.Flags().BoolVar(&vectorsRebuild, "rebuild", false, "drop, recreate and embed")
	vectorsCmd.Flags().BoolVar(&vectorsUpdate, "update", false, "embed missing entries only")
	vectorsCmd.Flags().BoolVar(&vectorsDelete, "delete", false, "drop the collection")
	vectorsCmd.Flags().BoolVar(&vectorsView, "view", false, "list collections")
	vectorsCmd.MarkFlagsOneRequired("create", "rebuild", "update", "delete", "view")
	vectorsCmd.MarkFlagsMutuallyExclusive("create", "rebuild", "update", "delete", "view")
	rootCmd.AddCommand(vectorsCmd)
}

func runVectors(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, err := initGenkit(ctx)
	if err != nil {
		return err
	}
	store, err := rt.openStore(g)
	if err != nil {
		return err
	}

	name := vectorsCollection
	if name == "" {
		name = rt.cfg.Collection
	}

	switch {
	case vectorsView:
		stats, err := store.Collections(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COLLECTION\tVECTORS\tDIM")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\n", s.Name, s.Vectors, s.Dim)
		}
		return w.Flush()

	case vectorsDelete:
		if err := store.DropCollection(ctx, name); err != nil {
			return err
		}
		fmt.Printf("Collection %s dropped\n", name)
		return nil

	case vectorsUpdate:
		entries, err := knowledge.Load(rt.cfg.KnowledgeBase)
		if err != nil {
			return err
		}
		n, err := store.Update(ctx, name, entries)
		if err != nil {
			return err
		}
		fmt.Printf("Embedded %d new entries into %s\n", n, name)
		return nil

	default: // create or rebuild
		entries, err := knowledge.Load(rt.cfg.KnowledgeBase)
		if err != nil {
			return err
		}
		if err := store.EnsureCollection(ctx, name, rt.cfg.VectorDim, vectorsRebuild); err != nil {
			return err
		}
		n, err := store.EmbedAll(ctx, name, entries)
		if err != nil {
			return err
		}
		fmt.Printf("Embedded %d entries into %s\n", n, name)
		return nil
	}
}
