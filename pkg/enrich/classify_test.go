package enrich

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	fferrors "github.com/tombee/fieldfill/pkg/errors"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorClass
	}{
		{"Connection timed out", TransientNetwork},
		{"CONNECTION REFUSED", TransientNetwork},
		{"read: socket closed", TransientNetwork},
		{"Network is unreachable", TransientNetwork},
		{"proxy authentication required", TransientNetwork},
		{"HTTP 502 Bad Gateway", TransientNetwork},
		{"status 503", TransientNetwork},
		{"429 Too Many Requests", TransientNetwork},
		{"request timeout", TransientNetwork},
		{"invalid api key", Permanent},
		{"model not found", Permanent},
		{"", Permanent},
		// Known false positive of the keyword heuristic.
		{"expected 50 tokens", TransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMessage(tt.msg))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "nil", err: nil, want: Permanent},
		{name: "plain transient", err: errors.New("dial tcp: connect: connection refused"), want: TransientNetwork},
		{name: "provider 500", err: &fferrors.ProviderError{Provider: "openai", StatusCode: 500, Message: "server error"}, want: TransientNetwork},
		{name: "provider 401", err: &fferrors.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}, want: Permanent},
		{
			name: "format error mentioning time",
			err:  &fferrors.ResponseFormatError{Response: "timeout", Cause: errors.New("unexpected end")},
			want: Permanent,
		},
		{name: "mapping error", err: &fferrors.MappingError{Field: "Network"}, want: Permanent},
		{name: "template error", err: &fferrors.TemplateError{Fields: []string{"Time"}}, want: Permanent},
		{name: "wrapped mapping error", err: fmt.Errorf("step 2: %w", &fferrors.MappingError{Field: "x"}), want: Permanent},
		{
			name: "provider 400 with request id",
			err:  &fferrors.ProviderError{Provider: "openai", StatusCode: 400, Message: "Invalid model name", RequestID: "req_7c50ab12"},
			want: Permanent,
		},
		{
			name: "provider 429 with request id",
			err:  &fferrors.ProviderError{Provider: "openai", StatusCode: 429, Message: "slow down", RequestID: "req_1"},
			want: TransientNetwork,
		},
		{
			name: "provider transport failure",
			err:  fmt.Errorf("step 1: %w", &fferrors.ProviderError{Provider: "anthropic", Message: "request failed: connection refused"}),
			want: TransientNetwork,
		},
		{name: "record not found", err: &fferrors.NotFoundError{Resource: "record", ID: "9e50f1"}, want: RecordAccess},
		{
			name: "commit on deleted record",
			err:  &CommitError{RecordID: "9e50f1", Cause: &fferrors.NotFoundError{Resource: "record", ID: "9e50f1"}},
			want: RecordAccess,
		},
		{name: "commit failure mentioning timeout", err: &CommitError{RecordID: "r1", Cause: errors.New("busy timeout")}, want: Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "permanent", Permanent.String())
	assert.Equal(t, "transient_network", TransientNetwork.String())
	assert.Equal(t, "record_access", RecordAccess.String())
}
