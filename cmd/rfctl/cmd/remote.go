package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rf433-go/errcode"
	"rf433-go/services/bridge"
	"rf433-go/types"
)

type remoteOptions struct {
	port     string
	baud     int
	blocking bool
	path     string
	events   bool
}

// dialRemote opens the link to a device running the serial bridge.
var dialRemote = func(port string, baud int) (io.ReadWriteCloser, error) {
	return bridge.OpenSerial(bridge.SerialConfig{Port: port, Baud: baud})
}

func newRemoteCmd() *cobra.Command {
	ro := &remoteOptions{}
	c := &cobra.Command{
		Use:   "remote <op> [key]",
		Short: "Drive the rf service on a device over its serial bridge",
		Long: `Send one rf request to a device and print the JSON reply.

Ops: learn, send, delete, show (take a key), keys, latency, cancel,
load and save (take --path, default the device's store file).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := ro.payload(args)
			if err != nil {
				return err
			}
			rw, err := dialRemote(ro.port, ro.baud)
			if err != nil {
				return err
			}
			defer rw.Close()

			cl := bridge.NewClient(rw)
			defer cl.Close()
			if ro.events {
				cl.Events = func(topic string, p json.RawMessage) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", topic, p)
				}
			}
			var out json.RawMessage
			if err := cl.Call(args[0], payload, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	f := c.Flags()
	f.StringVarP(&ro.port, "port", "p", "/dev/ttyACM0", "serial port of the device bridge")
	f.IntVar(&ro.baud, "baud", 115200, "serial baud rate")
	f.BoolVar(&ro.blocking, "blocking", false, "send with the blocking strategy")
	f.StringVar(&ro.path, "path", "", "store file for load and save")
	f.BoolVar(&ro.events, "events", false, "print publications forwarded while waiting")
	return c
}

// payload builds the request body for op.
func (ro *remoteOptions) payload(args []string) (any, error) {
	op := args[0]
	key := ""
	if len(args) == 2 {
		key = args[1]
	}
	needKey := func() error {
		if key == "" {
			return errcode.New(errcode.InvalidParams, op, "key required")
		}
		return nil
	}
	switch op {
	case "learn", "delete", "show":
		if err := needKey(); err != nil {
			return nil, err
		}
		return types.KeyReq{Key: key}, nil
	case "send":
		if err := needKey(); err != nil {
			return nil, err
		}
		return types.SendReq{Key: key, Blocking: ro.blocking}, nil
	case "load", "save":
		return types.PathReq{Path: ro.path}, nil
	case "keys", "latency", "cancel":
		return nil, nil
	default:
		return nil, errcode.New(errcode.InvalidTopic, "remote", "unknown op "+op)
	}
}
