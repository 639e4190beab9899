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

package shared

// Global flag values shared by every command.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlagPointers returns pointers for the root command to bind its
// persistent flags to.
func RegisterFlagPointers() (*bool, *bool, *bool, *string) {
	return &verboseFlag, &quietFlag, &jsonFlag, &configFlag
}

// SetVersion records build information injected by ldflags.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVerbose reports whether --verbose was given.
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet reports whether --quiet was given.
func GetQuiet() bool {
	return quietFlag
}

// GetJSON reports whether --json was given.
func GetJSON() bool {
	return jsonFlag
}

// GetConfigPath returns the --config value, empty for the default path.
func GetConfigPath() string {
	return configFlag
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetConfigPathForTest overrides --config.
func SetConfigPathForTest(path string) {
	configFlag = path
}

// SetJSONForTest overrides --json.
func SetJSONForTest(enabled bool) {
	jsonFlag = enabled
}

// ResetFlagsForTest restores every global flag to its zero value.
func ResetFlagsForTest() {
	verboseFlag, quietFlag, jsonFlag, configFlag = false, false, false, ""
}
