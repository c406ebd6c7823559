// Package wire holds the JSON shapes of the catalog HTTP API.
//
// Every response is wrapped in an envelope: {"success":true,"data":...} or
// {"success":false,"error":"..."}.
package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// APIError is a {"success":false} envelope.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "request failed"
	}
	return e.Message
}

// Success writes a successful envelope around data.
func Success(e *jx.Encoder, data func(e *jx.Encoder)) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("data")
	data(e)
	e.ObjEnd()
}

// Failure writes a failed envelope.
func Failure(e *jx.Encoder, msg string) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
}

// Error writes {"error": msg}.
func Error(e *jx.Encoder, msg string) {
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
}

// DecodeEnvelope unwraps an envelope, handing the data member to data.
// A failed envelope yields *APIError.
func DecodeEnvelope(raw []byte, data func(d *jx.Decoder) error) error {
	var (
		success bool
		message string
		payload jx.Raw
	)
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			v, err := d.Bool()
			success = v
			return err
		case "error":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			message = v
			return err
		case "data":
			v, err := d.Raw()
			payload = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return errors.Wrap(err, "decode envelope")
	}

	if !success {
		return &APIError{Message: message}
	}
	if payload == nil || data == nil {
		return nil
	}
	if err := data(jx.DecodeBytes(payload)); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func decodeOptString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
