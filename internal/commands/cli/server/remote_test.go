package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeResponse verifies response codes are mapped back to errors.
func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    string
		body    string
		wantErr error
	}{
		{name: "success", resp: "PE00abc", body: "abc"},
		{name: "empty body", resp: "LQ00", body: ""},
		{name: "known code", resp: "CWF1", wantErr: errorcodes.ErrF1},
		{name: "short", resp: "CW", wantErr: errorcodes.ErrMalformedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body, err := decodeResponse([]byte(tt.resp))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}

	_, err := decodeResponse([]byte("ZA99"))
	assert.ErrorContains(t, err, "code 99")
}

// TestClient verifies the client against a live server.
func TestClient(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r := builtins.NewRegistry(nil)
	r.Rebuild(context.Background())
	srv, err := server.NewServer(addr, &server.Plugins{Registry: r})
	require.NoError(t, err)

	go func() {
		_ = srv.Start()
	}()
	defer srv.Stop()
	time.Sleep(100 * time.Millisecond)

	c := dial(addr, 2*time.Second)
	defer c.Close()

	body, err := c.call("LP", nil)
	require.NoError(t, err)

	var infos []server.PluginInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	assert.NotEmpty(t, infos)

	var out bytes.Buffer
	require.NoError(t, writeInfos(&out, infos))
	assert.Contains(t, out.String(), "Read PDF metadata")

	_, err = c.call("CV", []byte(`{"input":"book.docx","output_format":"mobi"}`))
	assert.ErrorIs(t, err, errorcodes.ErrNoInputPlugin)
}
