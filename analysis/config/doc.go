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

/*
Package config manages configuration files and the logging facilities built
on top of them.

Use [Load](filename) to load a configuration from a specific filename, or
[NewDefault]() to obtain a configuration with every option at its default.

A config file is in yaml format. The top-level fields can be any of the
fields defined in the [Config] struct type; the remaining fields are defined
by the types of the fields of [Config] and nested struct types. For example,
a valid config file is as follows:

	options:
	  log-level: 4
	  field-flow-branch-limit: 2

	taint-tracking-problems:
	  - tag: command-injection
	    sources:
	      - method: Read
	    sinks:
	      - package: os/exec
	        method: Command

# Identifying code elements

The config uses [CodeIdentifier] to identify specific code entities, for
example the functions acting as taint sources or sinks. The string fields of
a code identifier are interpreted as regexes when they compile, and as plain
strings otherwise.
*/
package config
