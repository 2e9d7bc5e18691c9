package studio

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"bagify-server/modules/common/fallback"
	"bagify-server/modules/profile"
	"bagify-server/modules/provider"
	"bagify-server/modules/synth"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", validationf("extract", "not ready"), CodeValidation, http.StatusBadRequest},
		{"busy", ErrBusy, CodeBusy, http.StatusConflict},
		{"not found", fmt.Errorf("lookup: %w", ErrSessionNotFound), CodeNotFound, http.StatusNotFound},
		{"parse", &profile.ExtractionParseError{Profile: "character", Reason: "missing field"}, CodeExtractionParse, http.StatusBadGateway},
		{"image missing", &synth.ImageMissingError{Model: "m"}, CodeImageMissing, http.StatusBadGateway},
		{"provider", &provider.ProviderRequestError{Provider: provider.Dalle, StatusCode: 500, Detail: "boom"}, CodeProviderRequest, http.StatusBadGateway},
		{"unknown", errors.New("disk on fire"), CodeUnknown, http.StatusInternalServerError},
		{"publishing disabled", ErrPublishingDisabled, CodeNotFound, http.StatusNotFound},
		{
			"exhausted uses last attempt",
			&fallback.ExhaustedError{Label: "frame 4", Errs: []error{
				&provider.ProviderRequestError{Provider: provider.Imagen3, Detail: "backend unreachable"},
				&synth.ImageMissingError{Model: "m"},
			}},
			CodeImageMissing,
			http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Classify(tt.err, "s1")
			assert.Equal(t, KindBanner, view.Kind)
			assert.Equal(t, tt.code, view.Code)
			assert.Equal(t, tt.err.Error(), view.Error)
			assert.Nil(t, view.Remediation)
			assert.Equal(t, tt.status, StatusCode(tt.err))
		})
	}
}

func TestClassifySignatureFailure(t *testing.T) {
	err := fmt.Errorf("frame 1: %w", &provider.ProviderRequestError{
		Provider:   provider.Imagen3,
		StatusCode: 401,
		Detail:     "backend request failed (401): invalid JWT signature",
	})

	view := Classify(err, "abc")
	assert.Equal(t, KindRemediation, view.Kind)
	assert.Equal(t, CodeProviderRequest, view.Code)
	if assert.NotNil(t, view.Remediation) {
		assert.Equal(t, "/api/sessions/abc/generate", view.Remediation.Retry.Path)
		assert.Equal(t, http.MethodPost, view.Remediation.Retry.Method)
		assert.Len(t, view.Remediation.Steps, len(signatureSteps))
	}
}
