package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shoalcore/internal/knowledge"
)

var archiveContext bool

var contextCmd = &cobra.Command{
	Use:   "context <scientific-name> <source>",
	Short: "Show the aggregated treatment history for a species and source",
	Args:  cobra.ExactArgs(2),
	RunE:  runContext,
}

func init() {
	contextCmd.Flags().BoolVar(&archiveContext, "archive", false, "write the aggregate to the blob archive")
}

func runContext(cmd *cobra.Command, args []string) error {
	svc, _, err := openService()
	if err != nil {
		return err
	}
	species, source := args[0], args[1]

	hctx := svc.HistoricalContext(species, source)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "History for %s from %s\n\n", hctx.ScientificName, hctx.SourceCountry)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "shipments\t%d\n", hctx.ShipmentCount)
	fmt.Fprintf(w, "total fish\t%d\n", hctx.TotalFish)
	if hctx.AvgSuccessRate != nil {
		fmt.Fprintf(w, "avg success rate\t%.2f%%\n", *hctx.AvgSuccessRate)
	} else {
		fmt.Fprintf(w, "avg success rate\tn/a\n")
	}
	if hctx.AvgDensity != nil {
		fmt.Fprintf(w, "avg density\t%.2f fish/L\n", *hctx.AvgDensity)
	}

	rate := 0.0
	if hctx.AvgSuccessRate != nil {
		rate = *hctx.AvgSuccessRate
	}
	sampleSize := 0
	for _, treatment := range hctx.Treatments {
		if treatment.SuccessRate != nil {
			sampleSize++
		}
	}
	fmt.Fprintf(w, "confidence\t%s (%d assessed treatments)\n", knowledge.Level(sampleSize, rate), sampleSize)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(hctx.SuccessfulProtocols) > 0 {
		fmt.Fprintf(out, "\nProtocols with a successful outcome: %d\n", len(hctx.SuccessfulProtocols))
		for _, protocol := range hctx.SuccessfulProtocols {
			for _, drug := range protocol.Drugs {
				fmt.Fprintf(out, "  %s", drug.Name)
				if drug.Dosage != nil {
					fmt.Fprintf(out, " at %.2f", *drug.Dosage)
				}
				fmt.Fprintln(out)
			}
		}
	}

	if archiveContext {
		key, err := svc.ArchiveContext(cmd.Context(), species, source)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nArchived to %s\n", key)
	}
	return nil
}
