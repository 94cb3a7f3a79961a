package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/tensorconv-go/tensor"
)

const monoS16 = "audio/x-raw;format=S16LE;channels=1;rate=1000;layout=interleaved"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAudio(t *testing.T) {
	in := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	var out bytes.Buffer

	st, err := run(context.Background(), options{caps: monoS16, chunk: 4}, quietLogger(), in, &out, nil)
	require.NoError(t, err)
	// two frames per chunk, one tensor per frame
	assert.Equal(t, stats{buffersIn: 2, buffersOut: 4, bytesOut: 8}, st)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out.Bytes())
}

func TestRunWithPropertyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frames_per_tensor: 2\n"), 0o644))

	in := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	var out bytes.Buffer
	st, err := run(context.Background(), options{caps: monoS16, chunk: 2, config: path}, quietLogger(), in, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, st.buffersIn)
	assert.Equal(t, 2, st.buffersOut)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out.Bytes())
}

func TestRunFlexibleOutput(t *testing.T) {
	in := bytes.NewReader([]byte{1, 2})
	var out bytes.Buffer
	st, err := run(context.Background(), options{caps: monoS16, chunk: 2, flexible: true}, quietLogger(), in, &out, nil)
	require.NoError(t, err)
	require.Equal(t, 1, st.buffersOut)
	require.Equal(t, tensor.HeaderSize+2, out.Len())

	meta, err := tensor.ParseHeader(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, tensor.Int16, meta.Type)
	assert.Equal(t, []byte{1, 2}, out.Bytes()[tensor.HeaderSize:])
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	in := bytes.NewReader([]byte{1, 2, 3, 4})
	_, err := run(context.Background(), options{caps: monoS16, chunk: 4}, quietLogger(), in, io.Discard, reg)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tensorconv_converter_buffers_out_total"])
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := run(context.Background(), options{caps: "video/x-raw;format=", chunk: 4}, quietLogger(),
		bytes.NewReader(nil), io.Discard, nil)
	assert.Error(t, err)

	_, err = run(context.Background(), options{caps: monoS16, chunk: 0}, quietLogger(),
		bytes.NewReader(nil), io.Discard, nil)
	assert.Error(t, err)

	// text needs input_dim
	_, err = run(context.Background(), options{caps: "text/x-raw;format=utf8", chunk: 4}, quietLogger(),
		bytes.NewReader([]byte("abcd")), io.Discard, nil)
	assert.Error(t, err)
}

func TestRunKeepsPartialFrame(t *testing.T) {
	var out bytes.Buffer
	st, err := run(context.Background(), options{caps: monoS16, chunk: 4}, quietLogger(),
		bytes.NewReader([]byte{1, 2, 3, 4, 5}), &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, st.buffersIn)
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Bytes())
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := run(ctx, options{caps: monoS16, chunk: 4}, quietLogger(), bytes.NewReader([]byte{1, 2}), io.Discard, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
