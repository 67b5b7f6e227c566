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

import "strings"

// validateProcedure checks that a registered method name has the
// "/package.Service/Method" shape the bridge matches against the HTTP
// ":path" verbatim. There is no canonicalization: the registry does exact
// string equality against the full path, so a malformed name would
// silently become unreachable rather than merely mismatched.
func validateProcedure(name string) bool {
	if !strings.HasPrefix(name, "/") {
		return false
	}
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	if len(segments) != 2 {
		return false
	}
	return segments[0] != "" && segments[1] != ""
}
