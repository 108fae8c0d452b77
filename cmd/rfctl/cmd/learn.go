package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tarm/serial"

	"rf433-go/services/rf/capture"
)

type learnOptions struct {
	timeline  string
	port      string
	baud      int
	edges     int
	minFrames int
	tolerance float64
	asJSON    bool
}

func newLearnCmd(o *options) *cobra.Command {
	lo := &learnOptions{}
	c := &cobra.Command{
		Use:   "learn <key>",
		Short: "Learn a code from recorded edge timestamps",
		Long: `Learn a code from absolute edge timestamps in microseconds, one per
whitespace-separated token. Lines starting with '#' are ignored.

The timestamps come from a file (--timeline, "-" for stdin) or from a
receiver streaming them over a serial port (--serial).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			times, err := lo.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg := capture.Config{NEdges: lo.edges, MinFrames: lo.minFrames, Tolerance: lo.tolerance}
			code, rep, err := capture.Process(capture.FromTimeline(times), cfg)
			rep.Edges = len(times)
			if err != nil {
				printReport(cmd.ErrOrStderr(), rep, lo.asJSON)
				return err
			}

			st, err := o.open(true)
			if err != nil {
				return err
			}
			if err := st.Put(args[0], code); err != nil {
				return err
			}
			if err := st.Save(o.file); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep, lo.asJSON)
			return nil
		},
	}
	f := c.Flags()
	f.StringVarP(&lo.timeline, "timeline", "t", "", "file of edge timestamps, - for stdin")
	f.StringVar(&lo.port, "serial", "", "serial port streaming edge timestamps")
	f.IntVar(&lo.baud, "baud", 115200, "serial baud rate")
	f.IntVarP(&lo.edges, "edges", "n", capture.DefaultNEdges, "edges to use")
	f.IntVar(&lo.minFrames, "min-frames", capture.DefaultMinFrames, "minimum matching frames")
	f.Float64Var(&lo.tolerance, "tolerance", capture.DefaultTolerance, "frame gap as a fraction of the longest gap")
	f.BoolVar(&lo.asJSON, "json", false, "print the capture report as JSON")
	return c
}

func (lo *learnOptions) read(stdin io.Reader) ([]uint32, error) {
	switch {
	case lo.timeline != "" && lo.port != "":
		return nil, errors.New("use either --timeline or --serial")
	case lo.timeline == "-":
		return readTimeline(stdin, lo.edges)
	case lo.timeline != "":
		f, err := os.Open(lo.timeline)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readTimeline(f, lo.edges)
	case lo.port != "":
		port, err := serial.OpenPort(&serial.Config{Name: lo.port, Baud: lo.baud})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", lo.port, err)
		}
		defer port.Close()
		return readTimeline(port, lo.edges)
	}
	return nil, errors.New("one of --timeline or --serial is required")
}

// readTimeline reads up to max timestamps from r.
func readTimeline(r io.Reader, max int) ([]uint32, error) {
	if max <= 0 {
		max = capture.DefaultNEdges
	}
	times := make([]uint32, 0, max)
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(times) < max {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		for _, tok := range strings.Fields(line) {
			v, err := strconv.ParseUint(tok, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("timeline entry %d: %w", len(times), err)
			}
			times = append(times, uint32(v))
			if len(times) == max {
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return times, nil
}

func printReport(w io.Writer, rep capture.Report, asJSON bool) {
	if asJSON {
		b, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Fprintln(w, string(b))
		return
	}
	fmt.Fprintf(w, "edges %d, gaps %d, threshold %d us\n", rep.Edges, rep.Gaps, rep.Threshold)
	fmt.Fprintf(w, "frames %d, length %d, discarded %d, averaged %d\n", rep.Frames, rep.FrameLen, rep.Discarded, rep.Averaged)
	if rep.Averaged > 0 {
		fmt.Fprintf(w, "quality %.1f us (0 is perfect)\n", rep.Quality)
	}
}
