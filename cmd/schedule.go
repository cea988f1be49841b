package cmd

import (
	"time"

	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// scheduleCmd keeps the token renewed in the foreground until interrupted.
func scheduleCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run token renewal and cleanup on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			s, err := loadStack(ctx, reg)
			if err != nil {
				return classify(err)
			}
			defer s.Close()
			if err := s.cfg.RequireCredentials(); err != nil {
				return classify(err)
			}

			sched, err := scheduler.New(s.tokens, scheduler.Config{
				Spec:        s.cfg.RefreshSchedule,
				PruneAfter:  s.cfg.PruneAfter,
				MetricsAddr: s.cfg.MetricsAddr,
			}, reg)
			if err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}

			if once {
				return classify(sched.RunOnce(ctx))
			}
			cmd.Printf("Scheduler running with %q; next run at %s. Press Ctrl+C to stop.\n",
				s.cfg.RefreshSchedule, sched.Next().Local().Format(time.RFC1123))
			return sched.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run the jobs once and exit")

	return cmd
}
