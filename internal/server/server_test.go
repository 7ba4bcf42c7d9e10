package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/andrei-cloud/ebookconv/internal/builtins"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/andrei-cloud/ebookconv/pkg/palmdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlugins(t *testing.T) *Plugins {
	t.Helper()

	r := builtins.NewRegistry(nil)
	r.Rebuild(context.Background())

	return &Plugins{Registry: r}
}

func writeEPUB(t *testing.T) string {
	t.Helper()

	b := oeb.NewBook()
	b.Metadata.Title = "Served"
	b.AddDocument("c1", "c1.xhtml", oeb.WrapXHTML("Served", []byte("<p>over the wire</p>")))
	path := filepath.Join(t.TempDir(), "served.epub")
	require.NoError(t, builtins.NewEPUBOutput().Convert(context.Background(), b, path, nil, plugins.ConvertOptions{}))

	return path
}

// TestDispatch verifies the response frame of every command.
func TestDispatch(t *testing.T) {
	t.Parallel()

	s := newServer("", testPlugins(t))
	in := writeEPUB(t)
	text := []byte("the quick brown fox jumps over the quick brown dog")

	convertReq, err := json.Marshal(map[string]string{"input": in, "output_format": "mobi"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		request []byte
		want    []byte
	}{
		{"convert", append([]byte("CV"), convertReq...), []byte("CW00" + filepath.Join(filepath.Dir(in), "served.mobi"))},
		{"convert malformed json", []byte("CV{"), []byte("CWS1")},
		{"convert missing fields", []byte(`CV{"input":"x.epub"}`), []byte("CWS1")},
		{"convert unknown format", []byte(`CV{"input":"x.docx","output_format":"epub"}`), []byte("CWF1")},
		{"compress", append([]byte("PC"), text...), append([]byte("PD00"), palmdoc.Compress(text)...)},
		{"decompress", append([]byte("PD"), palmdoc.Compress(text)...), append([]byte("PE00"), text...)},
		{"unknown", []byte("ZZ0123"), []byte("ZA99")},
		{"unknown increments", []byte("AB"), []byte("AC99")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := s.Dispatch(context.Background(), tt.request)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp)
		})
	}

	_, err = s.Dispatch(context.Background(), []byte("C"))
	assert.Error(t, err)
}

// TestListPlugins verifies the plugin listing carries the disabled state.
func TestListPlugins(t *testing.T) {
	t.Parallel()

	s := newServer("", testPlugins(t))
	resp, err := s.Dispatch(context.Background(), []byte("LP"))
	require.NoError(t, err)
	require.Equal(t, "LQ00", string(resp[:4]))

	var infos []PluginInfo
	require.NoError(t, json.Unmarshal(resp[4:], &infos))
	require.NotEmpty(t, infos)

	byName := map[string]PluginInfo{}
	for _, in := range infos {
		byName[in.Name] = in
	}
	assert.True(t, byName["Read PDF metadata"].Disabled)
	assert.False(t, byName["EPUB Input"].Disabled)
	assert.Equal(t, []string{"epub"}, byName["EPUB Input"].FileTypes)
	assert.Equal(t, "builtin", byName["EPUB Input"].Installation)
}

// TestSetPlugins verifies a new registry generation is served after a swap.
func TestSetPlugins(t *testing.T) {
	t.Parallel()

	first := testPlugins(t)
	s := newServer("", first)
	assert.Same(t, first, s.Plugins())

	second := testPlugins(t)
	s.SetPlugins(second)
	assert.Same(t, second, s.Plugins())
}

// TestSetPluginsInFlight verifies the old manager stays open until the
// requests that started on it finish.
func TestSetPluginsInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pmA := plugins.NewPluginManager(ctx)
	pmB := plugins.NewPluginManager(ctx)
	t.Cleanup(func() {
		_ = pmA.Close()
		_ = pmB.Close()
	})

	first := &Plugins{Registry: testPlugins(t).Registry, Manager: pmA}
	second := &Plugins{Registry: testPlugins(t).Registry, Manager: pmB}
	s := newServer("", first)

	var mu sync.Mutex
	var closed []*plugins.PluginManager
	s.closeManager = func(pm *plugins.PluginManager) error {
		mu.Lock()
		defer mu.Unlock()
		closed = append(closed, pm)
		return nil
	}
	closedManagers := func() []*plugins.PluginManager {
		mu.Lock()
		defer mu.Unlock()
		return append([]*plugins.PluginManager(nil), closed...)
	}

	started := make(chan *Plugins)
	unblock := make(chan struct{})
	s.handlers["HX"] = func(_ context.Context, p *Plugins, _ []byte) ([]byte, error) {
		started <- p
		<-unblock
		return nil, nil
	}

	done := make(chan []byte)
	go func() {
		resp, _ := s.Dispatch(ctx, []byte("HX"))
		done <- resp
	}()

	assert.Same(t, first, <-started)
	s.SetPlugins(second)
	assert.Same(t, second, s.Plugins())
	assert.Empty(t, closedManagers())

	close(unblock)
	assert.Equal(t, "HY00", string(<-done))
	assert.Equal(t, []*plugins.PluginManager{pmA}, closedManagers())

	// a generation sharing the manager keeps it open
	s.SetPlugins(&Plugins{Registry: second.Registry, Manager: pmB})
	assert.Equal(t, []*plugins.PluginManager{pmA}, closedManagers())

	// an idle generation is closed at once
	s.SetPlugins(testPlugins(t))
	assert.Equal(t, []*plugins.PluginManager{pmA, pmB}, closedManagers())
}

// TestFrameLogging verifies only a bounded prefix of a frame reaches the log.
func TestFrameLogging(t *testing.T) {
	t.Parallel()

	record := append([]byte("PD"), bytes.Repeat([]byte{0xff}, 4096)...)
	assert.Len(t, preview(record), previewSize)
	assert.Equal(t, []byte("ab"), preview([]byte("ab")))

	assert.Equal(t, "PD", frameCode(record, 2))
	assert.Equal(t, "PE00", frameCode([]byte("PE00abc"), 4))
	assert.Equal(t, "P", frameCode([]byte("P"), 4))
}

func TestIncrementCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CW", incrementCode("CV"))
	assert.Equal(t, "ZA", incrementCode("ZZ"))
	assert.Equal(t, "X", incrementCode("X"))
}

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// TestServeOverTCP verifies a request round trip through the anet framing.
func TestServeOverTCP(t *testing.T) {
	addr := freeAddr(t)
	srv, err := NewServer(addr, testPlugins(t))
	require.NoError(t, err)

	go func() {
		_ = srv.Start()
	}()
	defer srv.Stop()
	time.Sleep(100 * time.Millisecond)

	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
			conn.Close()
			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, addr, nil)
	defer pool.Close()

	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()
	defer broker.Close()

	req := []byte("PDabc")
	resp, err := broker.Send(&req)
	require.NoError(t, err)
	assert.Equal(t, "PE00abc", string(resp))
}
