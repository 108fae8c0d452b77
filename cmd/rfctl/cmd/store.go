package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rf433-go/services/rf/playback"
)

func newKeysCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.open(true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range st.Keys() {
				c, _ := st.Get(k)
				fmt.Fprintf(out, "%-16s %4d pulses %8d us\n", k, len(c), c.Total())
			}
			return nil
		},
	}
}

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print the pulse lengths of one code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.open(false)
			if err != nil {
				return err
			}
			return st.Show(args[0], cmd.OutOrStdout())
		},
	}
}

func newDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a code and rewrite the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := o.open(false)
			if err != nil {
				return err
			}
			if err := st.Delete(args[0]); err != nil {
				return err
			}
			return st.Save(o.file)
		},
	}
}

func newLatencyCmd(o *options) *cobra.Command {
	var reps int
	c := &cobra.Command{
		Use:   "latency",
		Short: "Worst-case send time in ms for the stored codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := o.open(true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.Itoa(playback.LatencyMS(st.MaxTotal(), reps)))
			return nil
		},
	}
	c.Flags().IntVarP(&reps, "reps", "r", playback.DefaultReps, "repetitions per send")
	return c
}
