package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewIOError(ErrCodeCopyFile, "/tmp/out/app", "cannot copy file", cause)

	assert.Equal(t, "[ERR_COPY_FILE] /tmp/out/app: cannot copy file: permission denied", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewValidationError(ErrCodeNoEdition, "no edition"))

	assert.True(t, errors.Is(err, &Error{Type: ErrorTypeValidation, Code: ErrCodeNoEdition}))
	assert.False(t, errors.Is(err, &Error{Type: ErrorTypeValidation, Code: ErrCodeCustomStub}))
	assert.False(t, errors.Is(err, &Error{Type: ErrorTypeIO, Code: ErrCodeNoEdition}))
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		io         bool
	}{
		{"validation", NewValidationError(ErrCodeEmptyInclusions, "empty"), true, false},
		{"io", NewIOError(ErrCodeReadFile, "x", "read", nil), false, true},
		{"wrapped io", fmt.Errorf("ctx: %w", NewIOError(ErrCodeReadFile, "x", "read", nil)), false, true},
		{"plain", errors.New("plain"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.io, IsIO(tt.err))
		})
	}
}

func TestRemediationOf(t *testing.T) {
	err := fmt.Errorf("compile: %w",
		NewValidationError(ErrCodeNoEdition, "missing").WithRemediation("build a custom stub"))

	assert.Equal(t, "build a custom stub", RemediationOf(err))
	assert.Empty(t, RemediationOf(errors.New("plain")))
}

func TestFieldValidationErrorNamesValue(t *testing.T) {
	err := NewFieldValidationError("platform", "freebsd", "unknown platform")
	assert.Equal(t, "validation error in field 'platform' (freebsd): unknown platform", err.Error())
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.NoError(t, vec.ToError())

	vec.AddField("entrypoint", "", "must not be empty", "set \"entrypoint\" in stubforge.json")
	vec.AddField("arch", "sparc", "unsupported architecture")

	err := vec.ToError()
	require.Error(t, err)
	assert.Equal(t, ErrorTypeConfig, TypeOf(err))
	assert.Contains(t, err.Error(), "entrypoint")
	assert.Contains(t, err.Error(), "sparc")
	assert.Equal(t, "set \"entrypoint\" in stubforge.json", RemediationOf(err))
}

func TestOutputParserExtract(t *testing.T) {
	parser := NewOutputParser()

	tests := []struct {
		name     string
		output   string
		expected string
	}{
		{
			name:     "error line",
			output:   "Box version 4.6.6\n\n [ERROR] disk full  \n\n",
			expected: "disk full",
		},
		{
			name: "exception marker",
			output: "\nIn Configuration.php line 2731:\n" +
				"                                 \n" +
				"  The file \"index\" does not exist.  \n\n" +
				"compile [-c|--config CONFIG]\n",
			expected: "The file \"index\" does not exist.",
		},
		{
			name:     "error line wins over marker",
			output:   "In Box.php line 1:\n  boom\n [ERROR] first\n",
			expected: "first",
		},
		{
			name:     "raw fallback",
			output:   "\n  PHP Fatal error: out of memory \n",
			expected: "PHP Fatal error: out of memory",
		},
		{
			name:     "windows line endings",
			output:   "noise\r\n [ERROR] no space left\r\n",
			expected: "no space left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parser.Extract(tt.output))
		})
	}
}
