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

type inner struct {
	Secret string
	Plain  string
}

type outer struct {
	In    inner
	Label string
}

func getSensitive() string {
	return "credentials"
}

func emit(s string) {
	fmt.Println(s)
}

func main() {
	o := &outer{}
	o.Label = "report"
	o.In.Plain = "ok"
	o.In.Secret = getSensitive() // @Source(A)
	emit(o.In.Secret)            // @Sink(A)
	emit(o.In.Plain)
	emit(o.Label)
}
