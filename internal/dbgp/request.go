// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dbgp encodes and decodes the DBGp debugger protocol: client
// commands arrive as NUL-terminated command lines, and the engine
// answers with length-prefixed XML documents.
package dbgp

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// MaxCommandSize bounds a single command line.
const MaxCommandSize = 1 << 20

// Request is a decoded client command.
type Request struct {
	Name          string
	TransactionID int
	Args          map[string]string

	// Data is the decoded payload following "--".
	Data string
}

// Arg returns the value of option -key.
func (r *Request) Arg(key string) string {
	return r.Args[key]
}

// IntArg returns option -key as an integer, or def when absent.
func (r *Request) IntArg(key string, def int) (int, error) {
	v, ok := r.Args[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewError(r.Name, ErrInvalidOptions, fmt.Sprintf("option -%s must be an integer", key))
	}
	return n, nil
}

// ParseRequest decodes one command line without its NUL terminator.
func ParseRequest(line string) (*Request, error) {
	tokens, err := shellquote.Split(line)
	if err != nil {
		return nil, NewError("", ErrParse, err.Error())
	}
	if len(tokens) == 0 {
		return nil, NewError("", ErrParse, "empty command")
	}

	req := &Request{Name: tokens[0], Args: make(map[string]string)}
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "--" {
			raw := strings.Join(tokens[i+1:], "")
			data, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return nil, NewError(req.Name, ErrParse, "data is not valid base64")
			}
			req.Data = string(data)
			break
		}
		if len(tok) < 2 || tok[0] != '-' {
			return nil, NewError(req.Name, ErrInvalidOptions, fmt.Sprintf("unexpected token %q", tok))
		}
		key := tok[1:]
		value := ""
		if i+1 < len(tokens) && tokens[i+1] != "--" && !isOption(tokens[i+1]) {
			value = tokens[i+1]
			i++
		}
		req.Args[key] = value
	}

	id, ok := req.Args["i"]
	if !ok {
		return nil, NewError(req.Name, ErrInvalidOptions, "missing transaction id")
	}
	req.TransactionID, err = strconv.Atoi(id)
	if err != nil {
		return nil, NewError(req.Name, ErrInvalidOptions, "transaction id must be an integer")
	}
	delete(req.Args, "i")
	return req, nil
}

func isOption(tok string) bool {
	if len(tok) != 2 || tok[0] != '-' {
		return false
	}
	c := tok[1]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Encode renders the request as a NUL-terminated command line, the way
// a client sends it.
func (r *Request) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(r.Name)
	fmt.Fprintf(&b, " -i %d", r.TransactionID)

	keys := make([]string, 0, len(r.Args))
	for k := range r.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " -%s %s", k, shellquote.Join(r.Args[k]))
	}
	if r.Data != "" {
		b.WriteString(" -- ")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(r.Data)))
	}
	b.WriteByte(0)
	return b.Bytes()
}

// Reader splits a client stream into command lines.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a command reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next command line without its terminator.
func (r *Reader) Next() (string, error) {
	var line []byte
	for {
		chunk, err := r.r.ReadSlice(0)
		line = append(line, chunk...)
		if len(line) > MaxCommandSize {
			return "", NewError("", ErrParse, "command exceeds maximum size")
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return "", err
		}
		return string(line[:len(line)-1]), nil
	}
}
