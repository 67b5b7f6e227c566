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

import "context"

// ServerMethod pairs a registered procedure name with its type-erased
// dispatcher. It's owned exclusively by the ServerServiceDefinition that
// holds it.
type ServerMethod struct {
	name    string
	handler *Handler
}

func newServerMethod(name string, handler *Handler) ServerMethod {
	return ServerMethod{name: name, handler: handler}
}

func (m ServerMethod) dispatch(ctx context.Context, opts RequestOptions, req *StreamingRequest[[]byte]) *StreamingResponse[[]byte] {
	return m.handler.dispatch(ctx, opts, req)
}

// ServerServiceDefinition is an immutable, name-indexed collection of
// dispatchers. Construct one with a ServiceBuilder, or combine several
// with JoinServices.
type ServerServiceDefinition struct {
	methods []ServerMethod
}

// ServiceBuilder accumulates (name, Handler) registrations before sealing
// them into a ServerServiceDefinition.
type ServiceBuilder struct {
	prefix  string
	methods []ServerMethod
}

// NewServiceBuilder starts a service definition. servicePath is the
// fully-qualified service name, e.g. "grpc.testing.TestService"; method
// handlers are mounted at "/"+servicePath+"/"+method.
func NewServiceBuilder(servicePath string) *ServiceBuilder {
	return &ServiceBuilder{prefix: "/" + servicePath}
}

// Add registers handler under servicePath/method. It validates that the
// resulting procedure has the "/Service/Method" shape the bridge matches
// against, panicking on a malformed method name since that's a
// registration-time programming error, not a runtime condition.
func (b *ServiceBuilder) Add(method string, handler *Handler) *ServiceBuilder {
	name := b.prefix + "/" + method
	if !validateProcedure(name) {
		panic("grpc: invalid procedure name " + name)
	}
	b.methods = append(b.methods, newServerMethod(name, handler))
	return b
}

// Build seals the accumulated registrations into an immutable
// ServerServiceDefinition.
func (b *ServiceBuilder) Build() ServerServiceDefinition {
	return ServerServiceDefinition{methods: append([]ServerMethod(nil), b.methods...)}
}

// JoinServices concatenates multiple service definitions' methods without
// deduplication; callers are responsible for registering unique names, and
// when names collide the last-registered definition wins on lookup.
func JoinServices(defs ...ServerServiceDefinition) ServerServiceDefinition {
	var joined ServerServiceDefinition
	for _, d := range defs {
		joined.methods = append(joined.methods, d.methods...)
	}
	return joined
}

// Find performs exact string equality against the full HTTP path
// (including the leading "/"). A miss is Error{Code: CodeUnimplemented},
// never a panic: an unknown method name is a routine client mistake, not a
// server programming error. Last-registered wins when JoinServices
// produced duplicate names.
func (d *ServerServiceDefinition) Find(name string) (*ServerMethod, error) {
	var found *ServerMethod
	for i := range d.methods {
		if d.methods[i].name == name {
			m := d.methods[i]
			found = &m
		}
	}
	if found == nil {
		return nil, errUnimplemented(name)
	}
	return found, nil
}
