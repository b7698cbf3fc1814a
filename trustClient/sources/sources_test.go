package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.RetryDelay = time.Millisecond
	opts.Timeout = 2 * time.Second
	return opts
}

func TestUniqueIDFor(t *testing.T) {
	a := UniqueIDFor("file:///tmp/a.yaml")
	assert.Len(t, a, 16)
	assert.Equal(t, a, UniqueIDFor("file:///tmp/a.yaml"))
	assert.NotEqual(t, a, UniqueIDFor("file:///tmp/b.yaml"))
}

func TestStaticSource(t *testing.T) {
	src, err := NewStaticSourceFromParam("static:0x01=alpha, 0x02 ,")
	require.NoError(t, err)

	res, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []validators.Record{
		{PublicKey: validators.PublicKey{0x01}, Label: "alpha"},
		{PublicKey: validators.PublicKey{0x02}},
	}, res.List)
	assert.Equal(t, "static (2 validators)", src.Name())
	assert.Equal(t, UniqueIDFor("static:0x01=alpha, 0x02 ,"), src.UniqueID())

	_, err = NewStaticSourceFromParam("static:0xzz")
	assert.True(t, errors.IsSourceError(err, errors.ErrCodeParse))
}

func TestStaticSourceRoundTrip(t *testing.T) {
	list := []validators.Record{
		{PublicKey: validators.PublicKey{0xaa}, Label: "a"},
		{PublicKey: validators.PublicKey{0xbb}},
	}
	src := NewStaticSource(list)
	assert.Equal(t, "static:0xaa=a,0xbb", src.CreateParam())

	rebuilt, err := New(src.CreateParam(), Options{})
	require.NoError(t, err)
	assert.Equal(t, src.UniqueID(), rebuilt.UniqueID())

	res, err := rebuilt.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list, res.List)
}

func TestStaticSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticSource(nil).Fetch(ctx)
	assert.True(t, errors.IsCancelled(err))
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileSource(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		content    string
		want       []validators.Record
		message    string
		expiration time.Time
	}{
		{
			name:    "yaml document",
			file:    "list.yaml",
			content: "message: weekly list\nexpiration: 2030-01-02T03:04:05Z\nvalidators:\n  - public_key: \"0x01\"\n    label: one\n  - public_key: \"0x02\"\n",
			want: []validators.Record{
				{PublicKey: validators.PublicKey{0x01}, Label: "one"},
				{PublicKey: validators.PublicKey{0x02}},
			},
			message:    "weekly list",
			expiration: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:    "yaml list",
			file:    "list.yml",
			content: "- public_key: \"0x0a\"\n  label: ten\n",
			want:    []validators.Record{{PublicKey: validators.PublicKey{0x0a}, Label: "ten"}},
		},
		{
			name:    "json document",
			file:    "list.json",
			content: `{"message":"hi","validators":[{"public_key":"0x03","label":"three"}]}`,
			want:    []validators.Record{{PublicKey: validators.PublicKey{0x03}, Label: "three"}},
			message: "hi",
		},
		{
			name:    "json list",
			file:    "list.json",
			content: `[{"public_key":"04"}]`,
			want:    []validators.Record{{PublicKey: validators.PublicKey{0x04}}},
		},
		{
			name:    "text",
			file:    "list.txt",
			content: "# pinned\n0x05 five and a half\n\n06\n",
			want: []validators.Record{
				{PublicKey: validators.PublicKey{0x05}, Label: "five and a half"},
				{PublicKey: validators.PublicKey{0x06}},
			},
		},
		{
			name:    "empty yaml",
			file:    "empty.yaml",
			content: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			src, err := New(SchemeFile+path, testOptions(t))
			require.NoError(t, err)

			res, err := src.Fetch(context.Background())
			require.NoError(t, err)
			assert.Len(t, res.List, len(tt.want))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, res.List)
			}
			assert.Equal(t, tt.message, res.Message)
			assert.True(t, tt.expiration.Equal(res.Expiration))
			assert.Equal(t, SchemeFile+path, src.CreateParam())
		})
	}
}

func TestFileSourceErrors(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json"), testOptions(t))
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.True(t, errors.IsSourceError(err, errors.ErrCodeFetch))

	bad := writeFile(t, "bad.json", `{"validators":[{"public_key":"not_a_key"}]}`)
	src, err = NewFileSource(bad, testOptions(t))
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	assert.True(t, errors.IsSourceError(err, errors.ErrCodeParse))

	badText := writeFile(t, "bad.txt", "0x01\nq_q\n")
	src, err = NewFileSource(badText, testOptions(t))
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")

	_, err = NewFileSource("", testOptions(t))
	assert.Error(t, err)
}

func TestNewRejectsUnknownParams(t *testing.T) {
	for _, param := range []string{"", "ftp://example.com/list", "contract+https://rpc.example.com", "https://"} {
		_, err := New(param, Options{})
		assert.Error(t, err, param)
	}
}
