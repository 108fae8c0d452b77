package codestore

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"rf433-go/errcode"
)

// Load merges the codes in the JSON file at path into s, overwriting keys
// that already exist. The file is validated in full before anything is
// merged, so a bad file leaves s untouched.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errcode.Wrap(errcode.StoreIO, "load", err)
	}
	defer f.Close()
	return s.ReadJSON(f)
}

// ReadJSON is Load for an arbitrary reader.
func (s *Store) ReadJSON(r io.Reader) error {
	m, err := Decode(r)
	if err != nil {
		return err
	}
	s.merge(m)
	return nil
}

// Decode parses and validates a code file.
func Decode(r io.Reader) (map[string]Code, error) {
	var raw map[string][]json.Number
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errcode.Wrap(errcode.StoreIO, "decode", err)
	}
	if raw == nil {
		return nil, errcode.New(errcode.StoreIO, "decode", "not a JSON object")
	}
	out := make(map[string]Code, len(raw))
	for k, nums := range raw {
		if k == "" {
			return nil, errcode.New(errcode.StoreIO, "decode", "empty key")
		}
		c := make(Code, len(nums))
		for i, n := range nums {
			v, err := parseDuration(n)
			if err != nil {
				return nil, errcode.New(errcode.StoreIO, "decode", strconv.Quote(k)+"["+strconv.Itoa(i)+"]: "+err.Error())
			}
			c[i] = v
		}
		if err := c.Validate(); err != nil {
			return nil, errcode.New(errcode.StoreIO, "decode", strconv.Quote(k)+": "+err.Error())
		}
		out[k] = c
	}
	return out, nil
}

// parseDuration accepts integral JSON numbers in [1, 2^32-1]. Writers that
// emit 1500.0 for an integer are tolerated.
func parseDuration(n json.Number) (uint32, error) {
	if v, err := strconv.ParseUint(n.String(), 10, 32); err == nil {
		return uint32(v), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, errcode.New(errcode.InvalidCode, "parse", "not a non-negative integer: "+n.String())
	}
	return uint32(f), nil
}

// Save writes all codes to path. The data goes to a temporary file in the
// same directory which is then renamed over path, so a failed save leaves
// any previous file intact.
func (s *Store) Save(path string) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp*")
	if err != nil {
		return errcode.Wrap(errcode.StoreIO, "save", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = s.WriteJSON(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return errcode.Wrap(errcode.StoreIO, "save", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errcode.Wrap(errcode.StoreIO, "save", err)
	}
	return nil
}

// WriteJSON encodes all codes as one JSON object.
func (s *Store) WriteJSON(w io.Writer) error {
	b, err := json.Marshal(s.Snapshot())
	if err != nil {
		return errcode.Wrap(errcode.StoreIO, "encode", err)
	}
	if _, err := w.Write(b); err != nil {
		return errcode.Wrap(errcode.StoreIO, "write", err)
	}
	return nil
}

// Show writes one "index duration" row per element of the code under key.
func (s *Store) Show(key string, w io.Writer) error {
	c, err := s.Get(key)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	for i, d := range c {
		padLeft(&b, strconv.Itoa(i), 3)
		b.WriteByte(' ')
		padLeft(&b, strconv.FormatUint(uint64(d), 10), 6)
		b.WriteByte('\n')
	}
	_, err = w.Write(b.Bytes())
	return err
}

func padLeft(b *bytes.Buffer, s string, width int) {
	for n := len(s); n < width; n++ {
		b.WriteByte(' ')
	}
	b.WriteString(s)
}
