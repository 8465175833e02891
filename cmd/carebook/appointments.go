package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/carebook/internal/appointments"
	"github.com/wolfman30/carebook/internal/booking"
)

func (c *cli) appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "List appointments and move them through their lifecycle",
	}
	cmd.AddCommand(c.appointmentsListCmd())
	cmd.AddCommand(c.appointmentsUpcomingCmd())
	for _, action := range []appointments.Action{
		appointments.ActionConfirm,
		appointments.ActionCancel,
		appointments.ActionComplete,
		appointments.ActionNoShow,
	} {
		cmd.AddCommand(c.transitionCmd(action))
	}
	return cmd
}

func (c *cli) appointmentsListCmd() *cobra.Command {
	var (
		filter appointments.Filter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments visible to the acting context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				s := booking.Status(strings.ToUpper(status))
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = s
			}
			mgr := c.app.appointments()
			if err := mgr.LoadAppointments(cmd.Context(), filter); err != nil {
				return err
			}
			c.app.printAppointments(mgr.Appointments(), mgr.Total())
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.From, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.To, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "PENDING, CONFIRMED, CANCELLED, COMPLETED or NO_SHOW")
	cmd.Flags().StringVar(&filter.ProfessionalID, "professional", "", "professional id (admins)")
	cmd.Flags().StringVar(&filter.PatientID, "patient", "", "patient id (admins)")
	cmd.Flags().IntVar(&filter.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "page size")
	return cmd
}

func (c *cli) appointmentsUpcomingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List the next appointments of the acting context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := c.app.appointments()
			if err := mgr.LoadUpcomingAppointments(cmd.Context(), limit); err != nil {
				return err
			}
			c.app.printAppointments(mgr.Appointments(), mgr.Total())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of appointments")
	return cmd
}

func (c *cli) transitionCmd(action appointments.Action) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   string(action) + " <appointmentId>",
		Short: fmt.Sprintf("Move an appointment to %s", action.Target()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.appointments().Apply(cmd.Context(), action, args[0], reason)
		},
	}
	if action == appointments.ActionCancel {
		cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	}
	return cmd
}

func (a *app) printAppointments(items []booking.Appointment, total int) {
	if len(items) == 0 {
		a.printf("No appointments.\n")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tACTIONS")
	for _, appt := range items {
		actions := appointments.ActionsFor(appt.Status)
		names := make([]string, 0, len(actions))
		for _, act := range actions {
			names = append(names, string(act))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\n", appt.ID, appt.Date, appt.StartTime, appt.EndTime,
			appt.Status, orDash(strings.Join(names, ",")))
	}
	_ = tw.Flush()
	if total > len(items) {
		a.printf("%d of %d\n", len(items), total)
	}
}
