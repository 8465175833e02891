package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/carebook/internal/schedule"
)

func (c *cli) scheduleCmd() *cobra.Command {
	var professionalID string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show or replace a weekly schedule",
	}
	cmd.PersistentFlags().StringVar(&professionalID, "professional", "", "professional id (defaults to the acting professional)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the weekly schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ed := c.app.scheduleEditor(professionalID)
			if err := ed.LoadWeeklySchedule(cmd.Context()); err != nil {
				return err
			}
			c.app.printSchedule(*ed.Schedule(), ed.Configured())
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <file.json>",
		Short: "Replace the weekly schedule with the contents of a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read schedule: %w", err)
			}
			// IsActive shadows the embedded field so an omitted flag keeps
			// the server's value.
			var ws struct {
				schedule.WeeklySchedule
				IsActive *bool `json:"isActive"`
			}
			if err := json.Unmarshal(raw, &ws); err != nil {
				return fmt.Errorf("parse schedule %s: %w", args[0], err)
			}

			ed := c.app.scheduleEditor(professionalID)
			if err := ed.LoadWeeklySchedule(cmd.Context()); err != nil {
				return err
			}
			opts := schedule.UpdateOptions{
				SlotDuration: ws.DefaultSlotDuration,
				TimeZone:     ws.TimeZone,
				IsActive:     ws.IsActive,
			}
			if err := ed.UpdateWeeklySchedule(cmd.Context(), ws.Days, opts); err != nil {
				return err
			}
			c.app.printSchedule(*ed.Schedule(), ed.Configured())
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func (a *app) printSchedule(ws schedule.WeeklySchedule, configured bool) {
	if !configured {
		a.printf("(default template, not saved yet)\n")
	}
	a.printf("slot duration %dm, buffer %dm, time zone %s, active %t\n",
		ws.DefaultSlotDuration, ws.BufferTime, orDash(ws.TimeZone), ws.IsActive)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, d := range ws.Days {
		hours := "off"
		if d.IsWorkingDay {
			blocks := make([]string, 0, len(d.TimeBlocks))
			for _, b := range d.TimeBlocks {
				blocks = append(blocks, b.StartTime+"-"+b.EndTime)
			}
			hours = strings.Join(blocks, " ")
		}
		fmt.Fprintf(tw, "%s\t%s\n", d.DayOfWeek, hours)
	}
	_ = tw.Flush()
}

func (c *cli) absencesCmd() *cobra.Command {
	var professionalID string
	cmd := &cobra.Command{
		Use:   "absences",
		Short: "Manage a professional's absences",
	}
	cmd.PersistentFlags().StringVar(&professionalID, "professional", "", "professional id (defaults to the acting professional)")

	var filter schedule.AbsenceFilter
	var filterType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List absences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Type = schedule.AbsenceType(strings.ToUpper(filterType))
			ed := c.app.scheduleEditor(professionalID)
			if err := ed.LoadAbsences(cmd.Context(), filter); err != nil {
				return err
			}
			c.app.printAbsences(ed.Absences())
			return nil
		},
	}
	list.Flags().StringVar(&filter.From, "from", "", "first date, YYYY-MM-DD")
	list.Flags().StringVar(&filter.To, "to", "", "last date, YYYY-MM-DD")
	list.Flags().StringVar(&filterType, "type", "", "only absences of this type")

	var absence schedule.Absence
	var absenceType string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an absence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absence.Type = schedule.AbsenceType(strings.ToUpper(absenceType))
			created, err := c.app.scheduleEditor(professionalID).CreateAbsence(cmd.Context(), absence)
			if err != nil {
				return err
			}
			c.app.printAbsences([]schedule.Absence{*created})
			return nil
		},
	}
	add.Flags().StringVar(&absenceType, "type", string(schedule.AbsenceVacation), "VACATION, SICK_LEAVE, CONFERENCE, PERSONAL or OTHER")
	add.Flags().StringVar(&absence.StartDate, "start", "", "first day, YYYY-MM-DD")
	add.Flags().StringVar(&absence.EndDate, "end", "", "last day, YYYY-MM-DD")
	add.Flags().StringVar(&absence.Reason, "reason", "", "optional reason")
	_ = add.MarkFlagRequired("start")
	_ = add.MarkFlagRequired("end")

	del := &cobra.Command{
		Use:   "delete <absenceId>",
		Short: "Delete an absence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.scheduleEditor(professionalID).DeleteAbsence(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func (a *app) printAbsences(items []schedule.Absence) {
	if len(items) == 0 {
		a.printf("No absences.\n")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, ab := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\n", orDash(ab.ID), ab.Type, ab.StartDate, ab.EndDate, ab.Reason)
	}
	_ = tw.Flush()
}
