package vertexai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentialsDefaultsToADC(t *testing.T) {
	creds, err := LoadCredentials(Options{Project: "p"})
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestLoadCredentialsRejectsInvalidJSON(t *testing.T) {
	_, err := LoadCredentials(Options{CredentialsJSON: "not json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON credentials")

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	_, err = LoadCredentials(Options{CredentialsPath: path})
	require.Error(t, err)
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := LoadCredentials(Options{CredentialsPath: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read credentials file")
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Location: "us-central1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERTEXAI_PROJECT")
}
