package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/carebook/internal/config"
)

// cli carries the per-invocation app between cobra hooks and subcommands.
type cli struct {
	out    io.Writer
	errOut io.Writer
	role   string
	app    *app
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:          "carebook",
		Short:        "Book and manage appointments against the care directory",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Load(), c.out, c.errOut, c.role)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil {
				c.app.close()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&c.role, "as", "", "acting context: ADMIN, PROFESSIONAL or PATIENT")

	root.AddCommand(c.slotsCmd())
	root.AddCommand(c.bookCmd())
	root.AddCommand(c.appointmentsCmd())
	root.AddCommand(c.scheduleCmd())
	root.AddCommand(c.absencesCmd())
	root.AddCommand(c.whoamiCmd())
	return root
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity and its acting contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			active := a.session.ActiveRole()
			a.printf("user:    %s\n", a.session.CurrentUserID())
			a.printf("acting:  %s\n", orDash(string(active)))
			for _, ac := range a.session.Contexts() {
				marker := " "
				if ac.Role == active {
					marker = "*"
				}
				a.printf("%s %-13s %s\n", marker, ac.Role, ac.EntityID)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
