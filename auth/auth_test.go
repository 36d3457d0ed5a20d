package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagebit/dynago/credentials"
	"github.com/vantagebit/dynago/transport"
)

type stubSigner struct {
	name string
	caps []string
}

func (s *stubSigner) AddAuth(*transport.Request) error    { return nil }
func (s *stubSigner) Capability() []string                { return s.caps }
func (s *stubSigner) UpdateProvider(credentials.Provider) {}

func stubFactory(name string, caps ...string) Factory {
	return func(_, _, _ string, _ credentials.Provider) (Signer, error) {
		return &stubSigner{name: name, caps: caps}, nil
	}
}

func TestRegistrySelectsCapabilitySuperset(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register([]string{"hmac-v2"}, stubFactory("v2", "hmac-v2")))
	require.NoError(t, r.Register([]string{"hmac-v4", "s3"}, stubFactory("v4s3", "hmac-v4", "s3")))

	signer, err := r.Select([]string{"hmac-v4"}, "host", "us-east-1", "dynamodb", credentials.NewStatic("a", "b", ""))
	require.NoError(t, err)
	assert.Equal(t, "v4s3", signer.(*stubSigner).name)
}

func TestRegistryFirstRegisteredWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register([]string{"hmac-v4"}, stubFactory("first", "hmac-v4")))
	require.NoError(t, r.Register([]string{"hmac-v4", "extra"}, stubFactory("second", "hmac-v4", "extra")))

	signer, err := r.Select([]string{"hmac-v4"}, "host", "us-east-1", "dynamodb", credentials.NewStatic("a", "b", ""))
	require.NoError(t, err)
	assert.Equal(t, "first", signer.(*stubSigner).name)
}

func TestRegistryRejectsDuplicateCapabilitySet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register([]string{"s3", "hmac-v4"}, stubFactory("a", "hmac-v4", "s3")))
	err := r.Register([]string{"hmac-v4", "s3"}, stubFactory("b", "hmac-v4", "s3"))
	assert.Error(t, err)
}

func TestRegistryNotReadyWhenNoCapabilityMatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register([]string{"hmac-v2"}, stubFactory("v2", "hmac-v2")))

	_, err := r.Select([]string{"hmac-v4"}, "host", "us-east-1", "dynamodb", credentials.NewStatic("a", "b", ""))
	assert.ErrorIs(t, err, ErrNotReadyToAuthenticate)
}

func TestDefaultRegistryBuildsSigV4(t *testing.T) {
	signer, err := Default().Select([]string{"hmac-v4"}, "dynamodb.us-east-1.amazonaws.com", "us-east-1", "dynamodb",
		credentials.NewStatic("AKID", "SECRET", ""))
	require.NoError(t, err)
	assert.Contains(t, signer.Capability(), "hmac-v4")
}

func TestDefaultRegistryNotReadyWithoutCredentials(t *testing.T) {
	_, err := Default().Select([]string{"hmac-v4"}, "host", "us-east-1", "dynamodb",
		credentials.NewStatic("", "", ""))
	assert.ErrorIs(t, err, ErrNotReadyToAuthenticate)
}
