package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct{}

func (failingKV) Get(string, string) (string, bool, error) { return "", false, errors.New("flash gone") }
func (failingKV) Set(string, map[string]string) error     { return errors.New("flash gone") }

func TestStore_LoadAbsentIsEmpty(t *testing.T) {
	store := NewStore(NewFileKV(filepath.Join(t.TempDir(), "store.yaml")))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", creds.SSID)
	assert.Equal(t, "", creds.Password)
	assert.False(t, creds.Configured())
}

func TestStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "store.yaml")
	store := NewStore(NewFileKV(path))

	require.NoError(t, store.Save(Credentials{SSID: "home", Password: "secret123"}))

	// A fresh KV on the same file sees the commit.
	creds, err := NewStore(NewFileKV(path)).Load()
	require.NoError(t, err)
	assert.Equal(t, Credentials{SSID: "home", Password: "secret123"}, creds)
	assert.True(t, creds.Configured())
}

func TestStore_SaveKeepsOtherNamespaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	kv := NewFileKV(path)
	require.NoError(t, kv.Set("camera", map[string]string{"name": "porch"}))

	require.NoError(t, NewStore(kv).Save(Credentials{SSID: "a"}))

	v, ok, err := kv.Get("camera", "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "porch", v)
}

func TestStore_SaveRejectsOversize(t *testing.T) {
	store := NewStore(NewFileKV(filepath.Join(t.TempDir(), "store.yaml")))

	err := store.Save(Credentials{SSID: strings.Repeat("s", MaxSSIDLen+1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssid")

	err = store.Save(Credentials{SSID: "ok", Password: strings.Repeat("p", MaxPasswordLen+1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")

	require.NoError(t, store.Save(Credentials{
		SSID:     strings.Repeat("s", MaxSSIDLen),
		Password: strings.Repeat("p", MaxPasswordLen),
	}))
}

func TestStore_KVFailuresPropagate(t *testing.T) {
	store := NewStore(failingKV{})

	_, err := store.Load()
	assert.Error(t, err)
	assert.Error(t, store.Save(Credentials{SSID: "x"}))
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespaces: [\n"), 0600))

	_, _, err := NewFileKV(path).Get(Namespace, KeySSID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse store")
}
