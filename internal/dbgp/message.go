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

package dbgp

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Namespace is the XML namespace of every engine message.
const Namespace = "urn:debugger_protocol_v1"

// ProtocolVersion is the DBGp version the engine speaks.
const ProtocolVersion = "1.0"

// Init is the first message an engine sends after connecting.
type Init struct {
	XMLName         xml.Name `xml:"init"`
	XMLNS           string   `xml:"xmlns,attr"`
	AppID           string   `xml:"appid,attr"`
	IDEKey          string   `xml:"idekey,attr"`
	Session         string   `xml:"session,attr"`
	Thread          string   `xml:"thread,attr"`
	Language        string   `xml:"language,attr"`
	ProtocolVersion string   `xml:"protocol_version,attr"`
	FileURI         string   `xml:"fileuri,attr"`
	Engine          *Engine  `xml:"engine,omitempty"`
}

// Engine identifies the debugger implementation.
type Engine struct {
	Version string `xml:"version,attr"`
	Name    string `xml:",chardata"`
}

// Response answers one client command.
type Response struct {
	XMLName       xml.Name `xml:"response"`
	XMLNS         string   `xml:"xmlns,attr"`
	Command       string   `xml:"command,attr"`
	TransactionID int      `xml:"transaction_id,attr"`

	Status    string `xml:"status,attr,omitempty"`
	Reason    string `xml:"reason,attr,omitempty"`
	Success   string `xml:"success,attr,omitempty"`
	Feature   string `xml:"feature_name,attr,omitempty"`
	Supported string `xml:"supported,attr,omitempty"`
	ID        string `xml:"id,attr,omitempty"`
	State     string `xml:"state,attr,omitempty"`
	Depth     string `xml:"depth,attr,omitempty"`
	Encoding  string `xml:"encoding,attr,omitempty"`

	Value string `xml:",chardata"`

	Message     *Message      `xml:"message,omitempty"`
	Breakpoints []Breakpoint  `xml:"breakpoint,omitempty"`
	Stack       []StackFrame  `xml:"stack,omitempty"`
	Contexts    []ContextName `xml:"context,omitempty"`
	Properties  []Property    `xml:"property,omitempty"`
	Error       *Error        `xml:"error,omitempty"`
}

// Message locates a break in a continuation response.
type Message struct {
	Filename string `xml:"filename,attr"`
	Lineno   int    `xml:"lineno,attr"`
}

// Breakpoint describes a breakpoint.
type Breakpoint struct {
	ID       int    `xml:"id,attr"`
	Type     string `xml:"type,attr"`
	State    string `xml:"state,attr"`
	Filename string `xml:"filename,attr"`
	Lineno   int    `xml:"lineno,attr"`
	HitCount int    `xml:"hit_count,attr"`
}

// StackFrame describes one call-stack entry.
type StackFrame struct {
	Level    int    `xml:"level,attr"`
	Type     string `xml:"type,attr"`
	Filename string `xml:"filename,attr"`
	Lineno   int    `xml:"lineno,attr"`
	Where    string `xml:"where,attr,omitempty"`
	CmdBegin string `xml:"cmdbegin,attr,omitempty"`
}

// ContextName names a variable context.
type ContextName struct {
	Name string `xml:"name,attr"`
	ID   int    `xml:"id,attr"`
}

// Property is a variable or evaluation result.
type Property struct {
	Name        string     `xml:"name,attr"`
	FullName    string     `xml:"fullname,attr"`
	Type        string     `xml:"type,attr"`
	Children    int        `xml:"children,attr"`
	NumChildren int        `xml:"numchildren,attr,omitempty"`
	Page        int        `xml:"page,attr,omitempty"`
	PageSize    int        `xml:"pagesize,attr,omitempty"`
	Size        int        `xml:"size,attr,omitempty"`
	Encoding    string     `xml:"encoding,attr,omitempty"`
	Value       string     `xml:",chardata"`
	Properties  []Property `xml:"property,omitempty"`
}

// Error reports a failed command.
type Error struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:"message"`
}

// Limits bound how much of a value is sent to the client.
type Limits struct {
	MaxDepth    int
	MaxChildren int
	MaxData     int
}

// NewProperty describes value, expanding children up to the limits.
func NewProperty(name, fullName string, value any, limits Limits) Property {
	return newProperty(name, fullName, value, limits, 0)
}

func newProperty(name, fullName string, value any, limits Limits, depth int) Property {
	p := Property{Name: name, FullName: fullName}
	switch v := value.(type) {
	case nil:
		p.Type = "null"
	case bool:
		p.Type = "bool"
		p.Value = "0"
		if v {
			p.Value = "1"
		}
	case int:
		p.Type = "int"
		p.Value = strconv.Itoa(v)
	case int64:
		p.Type = "int"
		p.Value = strconv.FormatInt(v, 10)
	case float64:
		p.Type = "float"
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			p.Value = strconv.FormatFloat(v, 'f', 1, 64)
		} else {
			p.Value = strconv.FormatFloat(v, 'g', -1, 64)
		}
	case string:
		p.Type = "string"
		p.Size = len(v)
		p.Encoding = "base64"
		p.Value = encodeData(v, limits.MaxData)
	case []any:
		p.Type = "array"
		p.NumChildren = len(v)
		if len(v) > 0 {
			p.Children = 1
		}
		if depth < limits.MaxDepth {
			for i, child := range v {
				if limits.MaxChildren > 0 && i >= limits.MaxChildren {
					break
				}
				key := fmt.Sprintf("[%d]", i)
				p.Properties = append(p.Properties, newProperty(key, fullName+key, child, limits, depth+1))
			}
		}
	case map[string]any:
		p.Type = "hash"
		p.NumChildren = len(v)
		if len(v) > 0 {
			p.Children = 1
		}
		if depth < limits.MaxDepth {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				if limits.MaxChildren > 0 && i >= limits.MaxChildren {
					break
				}
				p.Properties = append(p.Properties, newProperty(k, fullName+"."+k, v[k], limits, depth+1))
			}
		}
	default:
		p.Type = "object"
		p.Encoding = "base64"
		p.Value = encodeData(fmt.Sprint(v), limits.MaxData)
	}
	if p.NumChildren > 0 && limits.MaxChildren > 0 {
		p.PageSize = limits.MaxChildren
	}
	return p
}

// EncodeData base64-encodes s.
func EncodeData(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func encodeData(s string, max int) string {
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return EncodeData(s)
}

// Marshal frames v as "<length>\0<xml>\0".
func Marshal(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	doc := append([]byte(xml.Header), body...)

	var b bytes.Buffer
	b.WriteString(strconv.Itoa(len(doc)))
	b.WriteByte(0)
	b.Write(doc)
	b.WriteByte(0)
	return b.Bytes(), nil
}

// ReadMessage reads one framed engine message, the way a client does,
// and returns the XML document.
func ReadMessage(r io.Reader) ([]byte, error) {
	var size []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return nil, err
		}
		if one[0] == 0 {
			break
		}
		size = append(size, one[0])
	}
	n, err := strconv.Atoi(string(size))
	if err != nil {
		return nil, fmt.Errorf("invalid message length %q", size)
	}
	doc := make([]byte, n+1)
	if _, err := io.ReadFull(r, doc); err != nil {
		return nil, err
	}
	if doc[n] != 0 {
		return nil, fmt.Errorf("message not terminated")
	}
	return doc[:n], nil
}
