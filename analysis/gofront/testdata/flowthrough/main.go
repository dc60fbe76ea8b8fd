// Copyright The Seep Authors. All Rights Reserved.
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

package main

import "fmt"

func getSensitive() string {
	return "credentials"
}

// pass returns its argument unchanged, so taint must survive the call.
func pass(s string) string {
	return s
}

func tag(s string) string {
	return "tag:" + s
}

func emit(s string) {
	fmt.Println(s)
}

func main() {
	direct := pass(getSensitive()) // @Source(A)
	emit(direct)                   // @Sink(A)
	clean := pass(tag("ok"))
	emit(clean)
}
