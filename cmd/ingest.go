package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galileo0/galileo/internal/config"
	"github.com/galileo0/galileo/internal/ingest"
)

var (
	ingestBBox   string
	ingestStart  string
	ingestEnd    string
	ingestLimit  int
	ingestUpdate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load Sentinel scenes from the Copernicus STAC catalogue",
	Long: `Fetches scene metadata from the Copernicus Data Space catalogue and
stores it in the local database. Re-running over the same window is safe;
already-known scenes are skipped.

With --update the time window starts just after the newest stored scene
and --start/--end are ignored.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestBBox, "bbox", "",
		"bounding box as min_lon,min_lat,max_lon,max_lat (default: Italy)")
	ingestCmd.Flags().StringVar(&ingestStart, "start", "", "window start, YYYY-MM-DD")
	ingestCmd.Flags().StringVar(&ingestEnd, "end", "", "window end, YYYY-MM-DD")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", ingest.DefaultLimit, "maximum scenes per request")
	ingestCmd.Flags().BoolVar(&ingestUpdate, "update", false, "fetch only scenes newer than the stored maximum")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	bbox := ingest.BBox{config.DefaultBBox[0], config.DefaultBBox[1], config.DefaultBBox[2], config.DefaultBBox[3]}
	if ingestBBox != "" {
		bbox, err = ingest.ParseBBox(ingestBBox)
		if err != nil {
			return err
		}
	}

	loader := ingest.New(rt.pool, rt.cfg.STACAPI, rt.logger)

	var result ingest.Result
	if ingestUpdate {
		result, err = loader.Update(ctx, bbox, rt.cfg.STACCollection, ingestLimit)
	} else {
		if ingestStart == "" || ingestEnd == "" {
			return fmt.Errorf("--start and --end are required unless --update is set")
		}
		result, err = loader.LoadRegion(ctx, ingest.SearchParams{
			BBox:       bbox,
			Datetime:   ingestStart + "T00:00:00Z/" + ingestEnd + "T23:59:59Z",
			Collection: rt.cfg.STACCollection,
			Limit:      ingestLimit,
		})
	}
	if err != nil {
		return err
	}

	fmt.Printf("Fetched %d scenes: %d inserted, %d assets\n",
		result.Fetched, result.Scenes, result.Assets)

	stats, err := loader.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Catalogue now holds %d scenes and %d assets", stats.TotalScenes, stats.TotalAssets)
	if stats.Earliest != nil && stats.Latest != nil {
		fmt.Printf(" from %s to %s",
			stats.Earliest.Format("2006-01-02"), stats.Latest.Format("2006-01-02"))
	}
	fmt.Println()
	return nil
}
