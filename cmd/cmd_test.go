package cmd

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-pcg/archive"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir    string
	config string
	wav    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Cleanup(func() { logging.SetGlobalLogger(&logging.NoOpLogger{}) })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sonido-pcg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"data_dir: "+filepath.Join(dir, "data")+"\n"+
			"log_level: error\n"+
			"archive:\n  index: file\n  index_path: index.yaml\n"), 0o644))

	s := make([]float64, 8000)
	for i := range s {
		tt := float64(i) / 4000
		s[i] = 0.4*math.Sin(2*math.Pi*60*tt) + 0.1*math.Sin(2*math.Pi*180*tt)
	}
	buf, err := pcm.NewBuffer(s, 4000)
	require.NoError(t, err)
	enc, err := transcode.NewEncoder(transcode.PlaybackBitDepth)
	require.NoError(t, err)
	data, err := enc.Encode(buf)
	require.NoError(t, err)
	wavPath := filepath.Join(dir, "heart.wav")
	require.NoError(t, os.WriteFile(wavPath, data, 0o644))

	return &env{dir: dir, config: cfgPath, wav: wavPath}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", e.config, "--env-file", filepath.Join(e.dir, "none.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	e := newEnv(t)
	playback := filepath.Join(e.dir, "denoised.wav")

	out, err := e.run(t, "analyze", e.wav, "-o", "json", "--playback", playback, "--gain", "1.5")
	require.NoError(t, err)

	var report AnalysisReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4000, report.SampleRate)
	assert.Equal(t, 8000, report.Samples)
	assert.False(t, report.Diagnosed)
	assert.Len(t, report.Means["mfcc"], 13)
	assert.Len(t, report.Means["chroma"], 12)

	_, err = os.Stat(playback)
	assert.NoError(t, err)
}

func TestAnalyzeRejectsInvertedBand(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "analyze", e.wav, "--low", "500", "--high", "100")
	require.Error(t, err)
	assert.ErrorIs(t, err, pcm.ErrInvalidFilterSpec)
}

func TestAnalyzeTableOutput(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "analyze", e.wav, "--features", "mfcc")
	require.NoError(t, err)
	assert.Contains(t, out, "Sample rate")
	assert.Contains(t, out, "mfcc")
	assert.NotContains(t, out, "chroma")
}

func TestCaseLifecycle(t *testing.T) {
	e := newEnv(t)

	var ids []string
	for _, name := range []string{"Ana", "Bea"} {
		out, err := e.run(t, "case", "add", e.wav, "--name", name, "--age", "50", "--gender", "female", "-o", "json")
		require.NoError(t, err)
		var pc archive.PatientCase
		require.NoError(t, json.Unmarshal([]byte(out), &pc))
		assert.Equal(t, name, pc.Metadata.Name)
		ids = append(ids, pc.ID)
	}

	out, err := e.run(t, "case", "list", "-o", "json")
	require.NoError(t, err)
	var list []archive.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].ID)
	assert.Equal(t, ids[0], list[1].ID)

	out, err = e.run(t, "case", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Bea")

	out, err = e.run(t, "case", "show", ids[0], "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Ana")

	out, err = e.run(t, "case", "show", ids[0], "--reanalyze", "-o", "json")
	require.NoError(t, err)
	var report AnalysisReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 8000, report.Samples)

	exported := filepath.Join(e.dir, "export.wav")
	_, err = e.run(t, "case", "export", ids[1], exported)
	require.NoError(t, err)
	buf, err := transcode.NewDecoder(nil).DecodeFile(exported)
	require.NoError(t, err)
	assert.Equal(t, 8000, buf.Len())

	sourceOut := filepath.Join(e.dir, "source.wav")
	_, err = e.run(t, "case", "export", ids[1], sourceOut, "--source")
	require.NoError(t, err)
	source, err := transcode.NewDecoder(nil).DecodeFile(sourceOut)
	require.NoError(t, err)
	original, err := transcode.NewDecoder(nil).DecodeFile(e.wav)
	require.NoError(t, err)
	assert.InDeltaSlice(t, original.Samples(), source.Samples(), 1e-4)

	_, err = e.run(t, "case", "show", "missing")
	assert.ErrorIs(t, err, pcm.ErrNotFound)
}

func TestCaseAddValidatesMetadata(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "case", "add", e.wav, "--name", "Ana", "--age", "130")
	require.Error(t, err)
	assert.ErrorIs(t, err, pcm.ErrInvalidParameter)

	out, err := e.run(t, "case", "list")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "No cases"))
}

func TestUnsupportedOutput(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "case", "list", "-o", "csv")
	assert.Error(t, err)
}
