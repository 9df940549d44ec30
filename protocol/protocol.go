// Package protocol is the newline-delimited JSON spoken on the control
// socket of a running absensi terminal.
package protocol

import (
	"encoding/json"
	"io"
)

type Action string

const (
	ActionStart    Action = "START"
	ActionPause    Action = "PAUSE"
	ActionStatus   Action = "STATUS"
	ActionRegister Action = "REGISTER"
)

type Req struct {
	Action Action            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// Name is the identity a REGISTER request enrolls.
func (r *Req) Name() string {
	return r.Params["name"]
}

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

type Res struct {
	Status Status            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
}

// Decoder reads consecutive messages from one connection. Use a single
// Decoder per connection: it buffers input past the message it returns.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

func (d *Decoder) ReadReq() (*Req, error) {
	var req Req
	err := d.dec.Decode(&req)
	return &req, err
}

func (d *Decoder) ReadRes() (*Res, error) {
	var res Res
	err := d.dec.Decode(&res)
	return &res, err
}

// ReadReq reads a single request from r. It may consume input past the
// request, see Decoder.
func ReadReq(r io.Reader) (*Req, error) {
	var req Req
	err := json.NewDecoder(r).Decode(&req)
	return &req, err
}

// ReadRes reads a single response from r. It may consume input past the
// response, see Decoder.
func ReadRes(r io.Reader) (*Res, error) {
	var res Res
	err := json.NewDecoder(r).Decode(&res)
	return &res, err
}

func WriteReq(w io.Writer, action Action, params map[string]string) error {
	req := Req{
		Action: action,
		Params: params,
	}
	return json.NewEncoder(w).Encode(&req)
}

func WriteRegisterReq(w io.Writer, name string) error {
	return WriteReq(w, ActionRegister, map[string]string{"name": name})
}

func WriteSuccessRes(w io.Writer, extras map[string]string) error {
	res := Res{
		Status: StatusSuccess,
		Extras: extras,
	}
	return json.NewEncoder(w).Encode(&res)
}

func WriteErrorRes(w io.Writer, err error) error {
	res := Res{
		Status: StatusError,
		Error:  err.Error(),
	}
	return json.NewEncoder(w).Encode(&res)
}

func WriteRes(w io.Writer, res *Res) error {
	return json.NewEncoder(w).Encode(res)
}
