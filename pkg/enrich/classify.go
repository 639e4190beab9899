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

package enrich

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

// ErrorClass is the retry classification of a failure.
type ErrorClass int

const (
	// Permanent failures skip the record.
	Permanent ErrorClass = iota

	// TransientNetwork failures retry the record after a fixed backoff.
	TransientNetwork

	// RecordAccess failures mean the record is gone. The record is
	// skipped without a log line or notice.
	RecordAccess
)

func (c ErrorClass) String() string {
	switch c {
	case TransientNetwork:
		return "transient_network"
	case RecordAccess:
		return "record_access"
	default:
		return "permanent"
	}
}

// transientKeywords are matched as substrings of the lowercased message.
// "50" catches 500, 502, 503 and 504 in provider messages.
var transientKeywords = []string{
	"connect",
	"time",
	"network",
	"socket",
	"proxy",
	"50",
	"429",
}

// ClassifyMessage classifies an error message by keyword. It is a
// heuristic: unrelated messages containing a keyword are retried.
func ClassifyMessage(msg string) ErrorClass {
	// A Caser is stateful and must not be shared between goroutines.
	msg = cases.Lower(language.Und).String(msg)
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return TransientNetwork
		}
	}
	return Permanent
}

// Classify classifies a record failure. A missing record is a
// RecordAccess failure. Errors raised by response application, prompt
// rendering or the record store are permanent regardless of their text.
// Provider errors are classified on their status code and message only;
// everything else goes through ClassifyMessage.
func Classify(err error) ErrorClass {
	if err == nil {
		return Permanent
	}

	var notFound *fferrors.NotFoundError
	if errors.As(err, &notFound) {
		return RecordAccess
	}

	var (
		formatErr   *fferrors.ResponseFormatError
		mappingErr  *fferrors.MappingError
		templateErr *fferrors.TemplateError
		validErr    *fferrors.ValidationError
		storeErr    *CommitError
	)
	switch {
	case errors.As(err, &formatErr),
		errors.As(err, &mappingErr),
		errors.As(err, &templateErr),
		errors.As(err, &validErr),
		errors.As(err, &storeErr):
		return Permanent
	}

	var providerErr *fferrors.ProviderError
	if errors.As(err, &providerErr) {
		return ClassifyMessage(providerText(providerErr))
	}

	return ClassifyMessage(err.Error())
}

// providerText is the part of a provider error the keyword heuristic
// sees. Request IDs are left out.
func providerText(e *fferrors.ProviderError) string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return strconv.Itoa(e.StatusCode) + " " + e.Message
}
