package data

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
)

type folderConfig struct {
	config.IService
	folder string
}

func (c folderConfig) GetSettingsFolder() string {
	return c.folder
}

func (c folderConfig) GetSnapshotFile() string {
	return filepath.Join(c.folder, "waste_stats.json")
}

func newTestService(t *testing.T) (IService, string) {
	t.Helper()
	folder := filepath.Join(t.TempDir(), "settings")
	return NewFilesDB(folderConfig{IService: config.NewHardCoded(), folder: folder}), folder
}

func TestSnapshot_OverwritesWholeFile(t *testing.T) {
	svc, folder := newTestService(t)

	counters := model.NewStatCounters(model.DefaultCategorySet())
	counters[model.Glass] = 3
	require.NoError(t, svc.SaveSnapshot(counters))

	counters[model.Glass] = 4
	counters[model.Metal] = 1
	require.NoError(t, svc.SaveSnapshot(counters))

	got, err := svc.RetrieveSnapshot()
	require.NoError(t, err)
	assert.Equal(t, counters, got)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSnapshot_MissingFileIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.RetrieveSnapshot()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshot_UnwritableFolder(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	svc := NewFilesDB(folderConfig{IService: config.NewHardCoded(), folder: filepath.Join(blocker, "settings")})
	assert.Error(t, svc.SaveSnapshot(model.StatCounters{model.Paper: 1}))
}

func TestNewError_AppendsRecords(t *testing.T) {
	svc, folder := newTestService(t)

	require.NoError(t, svc.NewError(model.GenError("detector", errors.New("boom"), nil, "frame %d", 7)))
	require.NoError(t, svc.NewError(errors.New("plain")))

	type record struct {
		Processor string `json:"processor"`
		Inner     string `json:"innerError"`
		Message   string `json:"message"`
	}
	records, err := retrieveEntities[record]("errors", folderConfig{IService: config.NewHardCoded(), folder: folder})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "detector", records[0].Processor)
	assert.Equal(t, "boom", records[0].Inner)
	assert.Equal(t, "frame 7", records[0].Message)
	assert.Equal(t, "N/A", records[1].Processor)
	assert.Equal(t, "plain", records[1].Message)
}

func TestNewDetectorStats_StampsTimestamp(t *testing.T) {
	svc, folder := newTestService(t)

	require.NoError(t, svc.NewDetectorStats(model.DetectorStats{Name: "detector", Frames: 10}))

	records, err := retrieveEntities[model.DetectorStats]("detector-stats", folderConfig{IService: config.NewHardCoded(), folder: folder})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 10, records[0].Frames)
	assert.NotZero(t, records[0].Timestamp)
}
