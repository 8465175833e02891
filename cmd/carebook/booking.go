package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/carebook/internal/booking"
	"github.com/wolfman30/carebook/internal/domainerr"
)

func (c *cli) slotsCmd() *cobra.Command {
	var duration int
	cmd := &cobra.Command{
		Use:   "slots <professionalId> <date>",
		Short: "List availability slots of a professional on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			reg := booking.NewRegistry(a.bookingConfig())
			id, flow := reg.Open()
			defer reg.Close(id)

			flow.InitializeFlow(cmd.Context(), args[0], "", duration)
			if err := flow.LoadAvailableSlots(cmd.Context(), args[1]); err != nil {
				return err
			}
			st := flow.State()
			a.printf("%s, %d minute slots\n", st.SelectedDate, st.DurationMinutes)
			a.printSlots(st.AvailableSlots)
			return nil
		},
	}
	cmd.Flags().IntVar(&duration, "duration", 0, "slot duration in minutes (defaults to your saved preference)")
	return cmd
}

func (c *cli) bookCmd() *cobra.Command {
	var (
		name     string
		notes    string
		duration int
	)
	cmd := &cobra.Command{
		Use:   "book <professionalId> <date> <HH:MM>",
		Short: "Book the slot starting at HH:MM",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			ctx := cmd.Context()
			profID, date, start := args[0], args[1], args[2]

			if duration > 0 {
				if err := a.prefs.SetPreferredDuration(ctx, a.session.CurrentUserID(), duration); err != nil {
					a.logger.Warn("carebook: saving duration preference failed", "error", err)
				}
			}

			reg := booking.NewRegistry(a.bookingConfig())
			id, flow := reg.Open()
			defer reg.Close(id)

			flow.InitializeFlow(ctx, profID, name, duration)
			if err := flow.LoadAvailableSlots(ctx, date); err != nil {
				return err
			}
			slot, ok := findSlot(flow.State().AvailableSlots, start, a)
			if !ok {
				return fmt.Errorf("no slot starting at %s on %s", start, date)
			}
			if err := flow.SelectSlot(slot); err != nil {
				return err
			}

			res, err := flow.Submit(ctx, notes)
			if err != nil {
				if errors.Is(err, domainerr.ErrTimeSlotUnavailable) {
					a.printf("Slots now available on %s:\n", date)
					a.printSlots(flow.State().AvailableSlots)
				}
				return err
			}
			if res.Appointment != nil {
				a.printf("appointment %s: %s %s-%s %s\n", res.Appointment.ID, res.Appointment.Date,
					res.Appointment.StartTime, res.Appointment.EndTime, res.Appointment.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "professional display name")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for the professional")
	cmd.Flags().IntVar(&duration, "duration", 0, "slot duration in minutes; also saved as your preference")
	return cmd
}

func findSlot(slots []booking.TimeSlot, start string, a *app) (booking.TimeSlot, bool) {
	for _, s := range slots {
		if s.LabelIn(a.loc) == start {
			return s, true
		}
	}
	return booking.TimeSlot{}, false
}

func (a *app) printSlots(slots []booking.TimeSlot) {
	if len(slots) == 0 {
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range slots {
		state := "taken"
		if s.IsAvailable {
			state = "free"
		}
		fmt.Fprintf(tw, "%s\t%s\t%dm\t%s\n", s.LabelIn(a.loc), orDash(s.EndTime), s.Duration, state)
	}
	_ = tw.Flush()
}
