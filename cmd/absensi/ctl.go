package main

import (
	"fmt"
	"net"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/abihf/absensi/protocol"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running terminal through its socket",
}

func ctlAction(use, short string, action protocol.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return control(action, nil)
		},
	}
}

var ctlRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register the face currently in front of the camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(protocol.ActionRegister, map[string]string{"name": args[0]})
	},
}

func init() {
	ctlCmd.AddCommand(
		ctlAction("start", "Start taking attendance", protocol.ActionStart),
		ctlAction("pause", "Pause taking attendance", protocol.ActionPause),
		ctlAction("status", "Show the terminal state", protocol.ActionStatus),
		ctlRegisterCmd,
	)
	rootCmd.AddCommand(ctlCmd)
}

func control(action protocol.Action, params map[string]string) error {
	if conf.Socket == "" {
		return errors.New("control socket is not configured")
	}

	conn, err := net.Dial("unix", conf.Socket)
	if err != nil {
		return errors.Wrap(err, "can not reach the terminal")
	}
	defer conn.Close()

	if err := protocol.WriteReq(conn, action, params); err != nil {
		return err
	}

	res, err := protocol.ReadRes(conn)
	if err != nil {
		return errors.Wrap(err, "can not read response")
	}
	if res.Status != protocol.StatusSuccess {
		return errors.New(res.Error)
	}

	keys := make([]string, 0, len(res.Extras))
	for k := range res.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, res.Extras[k])
	}
	return w.Flush()
}
