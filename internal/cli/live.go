package cli

import (
	"errors"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/app"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/output"
	appsync "github.com/nhle/taskflow/internal/sync"
)

func listenCmd(rt *runtime) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream task-assignment notifications to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rt.requireSession(ctx)
			if err != nil {
				return err
			}

			stream, syncer, stop := rt.live(ctx)
			defer stop()

			notes := make(chan model.NotificationEvent, 64)
			unsub := stream.OnAssigned(func(ev model.NotificationEvent) {
				select {
				case notes <- ev:
				default:
					log.Printf("listen: output is behind, dropped %q", ev.Message)
				}
			})
			defer unsub()

			if err := stream.Connect(ctx, s.UserID); err != nil {
				return err
			}
			syncer.Start()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Listening for task assignments as %s (ctrl+c to stop)\n", s.Name)

			received := 0
			for {
				select {
				case <-ctx.Done():
					return nil

				case ev := <-notes:
					if err := output.Notification(out, ev); err != nil {
						return err
					}
					received++
					if count > 0 && received >= count {
						return nil
					}

				case res := <-syncer.Results():
					switch {
					case res.AuthExpired:
						return res.Err
					case res.Err != nil:
						log.Printf("listen: refresh failed: %v", res.Err)
					case res.Trigger == appsync.ReasonEvent:
						fmt.Fprintf(out, "Tasks refreshed: %d total, %d new\n", len(res.Tasks), res.NewTaskCount)
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many notifications (0 = run until interrupted)")
	return cmd
}

func watchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rt.requireSession(ctx)
			if err != nil {
				return err
			}

			stream, syncer, stop := rt.live(ctx)
			defer stop()

			dash := app.New(app.Options{
				Session:  s,
				Syncer:   syncer,
				Stream:   stream,
				PageSize: rt.cfg.Display.PageSize,
			})

			// The dashboard keeps polling when the stream is down.
			if err := stream.Connect(ctx, s.UserID); err != nil {
				log.Printf("watch: event stream unavailable: %v", err)
			}

			p := tea.NewProgram(dash,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithInput(rt.opts.Stdin),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}
