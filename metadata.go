// Copyright 2021-2022 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grpc

import (
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
)

// binarySuffix marks a metadata key whose value is raw bytes, base64-coded
// on the wire, per the gRPC-over-HTTP2 convention.
const binarySuffix = "-bin"

// reservedHeaders are transport-control headers that metadata never carries
// in either direction: they're either pseudo-headers or owned entirely by
// the bridge.
var reservedHeaders = map[string]bool{
	"content-type":  true,
	"grpc-status":   true,
	"grpc-message":  true,
	"grpc-encoding": true,
	"te":            true,
	"user-agent":    true,
}

// MetadataEntry is one (name, value) pair. Binary entries carry arbitrary
// bytes in Value; non-binary entries carry UTF-8 text.
type MetadataEntry struct {
	Name   string
	Value  string
	Binary bool
}

// Metadata is an ordered sequence of header-like entries. An
// IntoHeaders/FromHeaders round trip preserves order only for entries
// already sorted by name: FromHeaders emits keys in sorted order, keeping
// value order within each key.
type Metadata []MetadataEntry

// Get returns the first entry with the given name, case-insensitively.
func (m Metadata) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, e := range m {
		if strings.ToLower(e.Name) == name {
			return e.Value, true
		}
	}
	return "", false
}

// FromHeaders builds Metadata from incoming HTTP headers, dropping
// pseudo-headers and the transport-reserved set, and base64-decoding
// "-bin"-suffixed values. net/http surfaces the header block as a map, so
// the arrival order of distinct keys is not recoverable here; entries are
// emitted in sorted key order to keep ingress deterministic, and value
// order within each key is preserved exactly as received.
func FromHeaders(headers http.Header) (Metadata, error) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var out Metadata
	for _, name := range names {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, ":") || reservedHeaders[lower] {
			continue
		}
		binary := strings.HasSuffix(lower, binarySuffix)
		for _, v := range headers[name] {
			value := v
			if binary {
				decoded, err := decodeBinaryValue(v)
				if err != nil {
					return nil, errInvalidMetadata("invalid base64 in metadata key %q: %v", name, err)
				}
				value = decoded
			}
			out = append(out, MetadataEntry{Name: lower, Value: value, Binary: binary})
		}
	}
	return out, nil
}

func decodeBinaryValue(v string) (string, error) {
	if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
		return string(decoded), nil
	}
	decoded, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// IntoHeaders is the inverse of FromHeaders: it re-encodes binary values as
// base64 and refuses to emit a reserved key, surfacing that as
// Error.InvalidMetadata for the bridge to translate into a trailer.
func IntoHeaders(m Metadata) (http.Header, error) {
	headers := make(http.Header, len(m))
	for _, e := range m {
		lower := strings.ToLower(e.Name)
		if strings.HasPrefix(lower, ":") || reservedHeaders[lower] {
			return nil, errInvalidMetadata("handler set reserved metadata key %q", e.Name)
		}
		value := e.Value
		if e.Binary || strings.HasSuffix(lower, binarySuffix) {
			value = base64.StdEncoding.EncodeToString([]byte(e.Value))
		}
		headers.Add(lower, value)
	}
	return headers, nil
}
