package main

import (
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/abihf/absensi/protocol"
	"github.com/abihf/absensi/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// how long a control request waits for the UI loop to answer
const controlTimeout = 10 * time.Second

type sender interface {
	Send(msg tea.Msg)
}

func listenControl(path string) (net.Listener, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "Listen error")
	}

	if err := os.Chmod(path, 0660); err != nil {
		slog.Warn("Can not chmod control socket", "path", path, "error", err)
	}
	return ln, nil
}

func serveControl(ln net.Listener, p sender) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Error("Accept error", "error", err)
			}
			return
		}
		go handleControl(c, p)
	}
}

// handleControl answers requests on c until the client hangs up. Requests
// are executed by the UI loop, never on this goroutine.
func handleControl(c net.Conn, p sender) {
	defer c.Close()

	dec := protocol.NewDecoder(c)
	for {
		req, err := dec.ReadReq()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("Can not read request", "error", err)
			}
			return
		}
		slog.Debug("Control request", "action", req.Action)

		reply := make(chan *protocol.Res, 1)
		p.Send(ui.ControlMsg{Req: req, Reply: reply})

		var res *protocol.Res
		select {
		case res = <-reply:
		case <-time.After(controlTimeout):
			res = &protocol.Res{Status: protocol.StatusError, Error: "timed out waiting for the terminal"}
		}

		if err := protocol.WriteRes(c, res); err != nil {
			slog.Warn("Can not write response", "error", err)
			return
		}
	}
}
