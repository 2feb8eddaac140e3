package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
	"github.com/JakeFAU/coffee-map-sync/internal/hash/sha256"
	"github.com/JakeFAU/coffee-map-sync/internal/storage/local"
	"github.com/JakeFAU/coffee-map-sync/internal/storage/memory"
)

const path = "data/current_list.json"

func records() []crawler.RawRecord {
	return []crawler.RawRecord{
		{Name: "Tim Wendelboe", Rank: 1, Country: "Norway", City: crawler.StringPtr("Oslo"),
			Address: "Grüners gate 1", Category: crawler.CategoryTop100, DetailURL: "https://example.com/locales/tim/"},
		{Name: "Onyx Coffee Lab", Rank: 2, Country: "United States", City: crawler.StringPtr("Rogers"),
			Address: crawler.AddressNotFound, Category: crawler.CategoryTop100, DetailURL: "https://example.com/locales/onyx/"},
	}
}

func newStore(t *testing.T, blobs crawler.BlobStore) *Store {
	t.Helper()
	s, err := New(blobs, path, sha256.New(), nil)
	require.NoError(t, err)
	return s
}

func TestSaveFirstRunIsChanged(t *testing.T) {
	t.Parallel()

	s := newStore(t, memory.NewBlobStore())
	res, err := s.Save(context.Background(), records())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.HadPrevious)
	assert.Empty(t, res.Previous)
	assert.Equal(t, 2, res.Records)
	assert.Contains(t, res.Current, sha256.Prefix)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records(), loaded)
}

func TestSaveUnchangedIgnoresOrderCaseAndAddress(t *testing.T) {
	t.Parallel()

	s := newStore(t, memory.NewBlobStore())
	_, err := s.Save(context.Background(), records())
	require.NoError(t, err)

	again := records()
	again[0], again[1] = again[1], again[0]
	again[0].Name = "ONYX COFFEE LAB "
	again[1].Address = "somewhere else"
	again[1].Category = "top100"

	res, err := s.Save(context.Background(), again)
	require.NoError(t, err)
	assert.True(t, res.HadPrevious)
	assert.False(t, res.Changed)
	assert.Equal(t, res.Previous, res.Current)
}

func TestSaveDetectsRankAndCityChanges(t *testing.T) {
	t.Parallel()

	s := newStore(t, memory.NewBlobStore())
	_, err := s.Save(context.Background(), records())
	require.NoError(t, err)

	moved := records()
	moved[0].Rank, moved[1].Rank = 2, 1
	res, err := s.Save(context.Background(), moved)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	relocated := moved
	relocated[0].City = nil
	res, err = s.Save(context.Background(), relocated)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

func TestSaveOverwritesUnreadableSnapshot(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	_, err := blobs.PutObject(context.Background(), path, contentType, []byte("{not json"))
	require.NoError(t, err)

	s := newStore(t, blobs)
	_, err = s.Load(context.Background())
	require.Error(t, err)

	res, err := s.Save(context.Background(), records())
	require.NoError(t, err)
	assert.True(t, res.Changed)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSaveWriteFailure(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	blobs.FailPuts(errors.New("disk full"))
	s := newStore(t, blobs)
	_, err := s.Save(context.Background(), records())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	s := newStore(t, memory.NewBlobStore())
	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSaveWritesPlainArrayToDisk(t *testing.T) {
	t.Parallel()

	blobs, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	s := newStore(t, blobs)

	_, err = s.Save(context.Background(), records())
	require.NoError(t, err)

	data, err := blobs.GetObject(context.Background(), path)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "Tim Wendelboe", raw[0]["name"])
	assert.Equal(t, "https://example.com/locales/tim/", raw[0]["source_url"])
	assert.Equal(t, "Oslo", raw[0]["city"])
}

func TestFingerprintEmpty(t *testing.T) {
	t.Parallel()

	a, err := Fingerprint(sha256.New(), nil)
	require.NoError(t, err)
	b, err := Fingerprint(sha256.New(), []crawler.RawRecord{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, path, sha256.New(), nil)
	assert.Error(t, err)
	_, err = New(memory.NewBlobStore(), path, nil, nil)
	assert.Error(t, err)
	_, err = New(memory.NewBlobStore(), " ", sha256.New(), nil)
	assert.Error(t, err)
}
