package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number and keeps its text form.
// Front-end carts send offer ids both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	*f = flexString(n.String())
	return nil
}

// flexID accepts a positive integer given as a JSON number or numeric
// string.  Zero means absent.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return errors.New("id must be a positive integer")
	}
	*f = flexID(n)
	return nil
}
