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

func getSecret() string {
	return "credentials"
}

func readInput() string {
	return "input"
}

func logValue(s string) {
	fmt.Println("log:", s)
}

func sendValue(s string) {
	fmt.Println("send:", s)
}

func main() {
	a := getSecret() // @Source(A)
	b := readInput() // @Source(B)
	logValue(a)      // @Sink(A)
	sendValue(b)     // @Sink(B)
}
