package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Print today's treatment checklist and workload estimate",
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, _ []string) error {
	svc, cfg, err := openService()
	if err != nil {
		return err
	}

	tasks := svc.Tasks()
	workload := svc.EstimateWorkload()
	overdue := svc.OverdueFollowups(cfg.Schedule.OverdueGraceDays)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daily tasks for %s\n\n", tasks.Date.Format("2006-01-02"))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "active treatments\t%d\n", len(tasks.Active))
	fmt.Fprintf(w, "ending today\t%d\n", len(tasks.EndingToday))
	fmt.Fprintf(w, "follow-ups due\t%d\n", len(tasks.FollowupsNeeded))
	fmt.Fprintf(w, "follow-ups overdue\t%d\n", len(overdue))
	fmt.Fprintf(w, "estimated time\t%d min\n", workload.EstimatedTimeMinutes)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(tasks.FollowupsNeeded) > 0 {
		fmt.Fprintln(out, "\nFollow-up assessments due:")
		for _, t := range tasks.FollowupsNeeded {
			fmt.Fprintf(out, "  %s (shipment %s, ended %s)\n", t.ID, t.ShipmentID, t.EndDate.Format("2006-01-02"))
		}
	}
	for _, t := range overdue {
		fmt.Fprintf(out, "OVERDUE: treatment %s ended %s without a follow-up\n", t.ID, t.EndDate.Format("2006-01-02"))
	}
	return nil
}
