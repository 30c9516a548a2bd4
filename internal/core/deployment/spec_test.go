package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() Spec {
	return Spec{
		Image:           "qa-service",
		Tag:             "1.0",
		ContainerName:   "qa-service",
		NetworkName:     "qa-net",
		HostBindAddress: "127.0.0.1",
		HostPort:        6500,
		ContainerPort:   6500,
		ContextDir:      ".",
	}
}

func TestSpec_Validate_OK(t *testing.T) {
	assert.NoError(t, validSpec().Validate())
}

func TestSpec_Validate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Spec)
		wantErr error
	}{
		{"missing image", func(s *Spec) { s.Image = "" }, ErrMissingImage},
		{"missing tag", func(s *Spec) { s.Tag = "" }, ErrMissingTag},
		{"missing container name", func(s *Spec) { s.ContainerName = "" }, ErrMissingContainer},
		{"missing network name", func(s *Spec) { s.NetworkName = "" }, ErrMissingNetwork},
		{"missing context dir", func(s *Spec) { s.ContextDir = "" }, ErrMissingContext},
		{"bad container name", func(s *Spec) { s.ContainerName = "qa service!" }, ErrInvalidName},
		{"leading dash", func(s *Spec) { s.ContainerName = "-qa" }, ErrInvalidName},
		{"bad network name", func(s *Spec) { s.NetworkName = "qa/net" }, ErrInvalidName},
		{"host port zero", func(s *Spec) { s.HostPort = 0 }, ErrInvalidPort},
		{"host port too large", func(s *Spec) { s.HostPort = 70000 }, ErrInvalidPort},
		{"container port zero", func(s *Spec) { s.ContainerPort = 0 }, ErrInvalidPort},
		{"bad bind address", func(s *Spec) { s.HostBindAddress = "localhost" }, ErrInvalidBindAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			err := spec.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSpec_Validate_EmptyBindAddressAllowed(t *testing.T) {
	spec := validSpec()
	spec.HostBindAddress = ""
	assert.NoError(t, spec.Validate())
}

func TestSpec_ImageRef(t *testing.T) {
	assert.Equal(t, "qa-service:1.0", validSpec().ImageRef())
}

func TestSpec_PlatformOptional(t *testing.T) {
	spec := validSpec()
	spec.Platform = "linux/arm64"
	assert.NoError(t, spec.Validate())
}
