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

/*
Package cli provides the root command for the fieldfill CLI.

The root command owns the persistent flags and version information.
Subcommands live in the internal/commands packages and are attached in
cmd/fieldfill.

# Command Tree

	fieldfill
	├── run       Enrich records with a prompt or pipeline
	├── records   Import, list, show and delete records
	├── prompts   Inspect the prompt library
	├── history   List recent runs
	├── keys      Store provider API keys in the OS keychain
	└── version   Show version

# Global Flags

	--config   Path to config file
	--verbose  Enable debug logging
	--quiet    Suppress non-error output
	--json     Output in JSON format
*/
package cli
