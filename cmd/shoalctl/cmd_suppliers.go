package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shoalcore/internal/supplier"
)

var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "Rank source countries by historical success rate",
	RunE:  runSuppliers,
}

func runSuppliers(cmd *cobra.Command, _ []string) error {
	svc, _, err := openService()
	if err != nil {
		return err
	}

	ranked := svc.SupplierPerformance()
	out := cmd.OutOrStdout()
	if len(ranked) == 0 {
		fmt.Fprintln(out, "No shipments recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSHIPMENTS\tFISH\tAVG RATE\tRATING")
	for _, stats := range ranked {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\t%s\n",
			stats.Source, stats.ShipmentCount, stats.TotalFish, stats.AvgSuccessRate, stats.Rating)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	for _, stats := range ranked {
		fmt.Fprintf(out, "%s: %s\n", stats.Source, supplier.Recommendation(stats))
	}
	return nil
}
