package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"rf433-go/services/rf/codestore"
)

// options shared by every subcommand.
type options struct {
	file string
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "rfctl",
		Short: "Inspect and learn 433MHz remote codes",
		Long: `rfctl edits the JSON code file used by the rf service and can learn
new codes off-device from recorded edge timestamps.

Examples:
  rfctl keys                                   # list stored codes
  rfctl show door                              # pulse lengths of one code
  rfctl learn door --timeline capture.txt      # learn from a recorded timeline
  rfctl learn door --serial /dev/ttyACM0       # learn from a streamed timeline
  rfctl remote send door -p /dev/ttyACM0       # replay a code stored on the device`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&o.file, "file", "f", "rf_codes.json", "code file")

	root.AddCommand(
		newKeysCmd(o),
		newShowCmd(o),
		newDeleteCmd(o),
		newLatencyCmd(o),
		newLearnCmd(o),
		newRemoteCmd(),
	)
	return root
}

// open loads the code file. A missing file is an empty store when
// allowMissing is set.
func (o *options) open(allowMissing bool) (*codestore.Store, error) {
	st := codestore.New()
	if err := st.Load(o.file); err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return nil, err
	}
	return st, nil
}
