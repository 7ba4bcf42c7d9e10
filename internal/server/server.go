// Package server exposes conversion and PalmDOC services over the anet TCP
// framing. Requests and responses start with a two letter command code.
package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/andrei-cloud/ebookconv/internal/convert"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/andrei-cloud/ebookconv/pkg/palmdoc"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CodeFailure is the response code of failures without a dedicated code,
// and of unknown commands.
const CodeFailure = "99"

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// Plugins is one generation of the plugin registry together with the wasm
// manager backing its external plugins.
type Plugins struct {
	Registry *plugins.Registry
	Manager  *plugins.PluginManager // nil when no external plugins are loaded
}

// handlerFunc serves one command. The returned bytes follow the response code.
type handlerFunc func(ctx context.Context, p *Plugins, payload []byte) ([]byte, error)

// generation counts the requests using one Plugins value. A retired
// generation closes its manager once the last request releases it.
type generation struct {
	plugins *Plugins
	refs    int
	retired bool
}

// Server wraps the anet TCP server and the conversion services.
type Server struct {
	address     string
	srv         *anetserver.Server
	mu          sync.Mutex
	current     *generation
	handlers    map[string]handlerFunc
	activeConns int32

	closeManager func(*plugins.PluginManager) error
}

// NewServer configures a server answering on address with p.
func NewServer(address string, p *Plugins) (*Server, error) {
	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // conversions answer late
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := newServer(address, p)
	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

func newServer(address string, p *Plugins) *Server {
	s := &Server{
		address:      address,
		current:      &generation{plugins: p},
		closeManager: (*plugins.PluginManager).Close,
	}
	s.handlers = map[string]handlerFunc{
		"CV": handleConvert,
		"LP": handleListPlugins,
		"PC": handleCompress,
		"PD": handleDecompress,
	}

	return s
}

// Start begins listening for connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")
	return s.srv.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// Plugins returns the registry generation in service.
func (s *Server) Plugins() *Plugins {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.plugins
}

// SetPlugins swaps in a new registry generation. Requests already running keep
// the generation they started with; its manager is closed after the last of
// them finishes.
func (s *Server) SetPlugins(p *Plugins) {
	s.mu.Lock()
	old := s.current
	s.current = &generation{plugins: p}
	old.retired = true
	idle := old.refs == 0
	s.mu.Unlock()

	if idle {
		s.retire(old, p)
	}
}

// acquire pins the current generation for one request.
func (s *Server) acquire() *generation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.refs++

	return s.current
}

// release unpins g and closes it when it was retired meanwhile.
func (s *Server) release(g *generation) {
	s.mu.Lock()
	g.refs--
	done := g.retired && g.refs == 0
	next := s.current.plugins
	s.mu.Unlock()

	if done {
		s.retire(g, next)
	}
}

// retire closes the manager of g unless next still uses it.
func (s *Server) retire(g *generation, next *Plugins) {
	old := g.plugins
	if old == nil || old.Manager == nil || (next != nil && old.Manager == next.Manager) {
		return
	}
	if err := s.closeManager(old.Manager); err != nil {
		log.Error().Err(err).Msg("failed to close old plugin manager")
	}
}

// previewSize is the number of frame bytes written to debug logs.
const previewSize = 64

// preview returns at most previewSize leading bytes of a frame.
func preview(data []byte) []byte {
	return data[:min(len(data), previewSize)]
}

// frameCode returns up to n leading bytes of a frame: 2 for the command of a
// request, 4 for the response and error codes of a response.
func frameCode(data []byte, n int) string {
	return string(data[:min(len(data), n)])
}

// formatData returns ascii string if all bytes are printable, else hex string.
func formatData(data []byte) string {
	for _, b := range data {
		if b < 32 || b > 126 {
			return hex.EncodeToString(data)
		}
	}
	return string(data)
}

// incrementCode returns the response code of a command by incrementing its
// second character.
func incrementCode(cmd string) string {
	b := []byte(cmd)
	if len(b) < 2 {
		return cmd
	}
	if b[1] == 'Z' {
		b[1] = 'A'
	} else {
		b[1]++
	}

	return string(b)
}

// errorCode extracts the two character code carried by err.
func errorCode(err error) string {
	var ce errorcodes.ConvError
	if errors.As(err, &ce) {
		return ce.CodeOnly()
	}

	return CodeFailure
}

// Dispatch answers one request frame.
func (s *Server) Dispatch(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, errorcodes.ErrMalformedRequest
	}

	cmd := string(data[:2])
	respCode := incrementCode(cmd)
	h, ok := s.handlers[cmd]
	if !ok {
		log.Warn().
			Str("event", "unknown_command").
			Str("command", cmd).
			Msg("Command not recognized, responding with error code")
		return []byte(respCode + CodeFailure), nil
	}

	g := s.acquire()
	body, err := h(ctx, g.plugins, data[2:])
	s.release(g)
	if err != nil {
		log.Error().
			Str("event", "command_error").
			Str("command", cmd).
			Err(err).
			Msg("command failed")
		return []byte(respCode + errorCode(err)), nil
	}

	return append([]byte(respCode+errorcodes.Err00.CodeOnly()), body...), nil
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	atomic.AddInt32(&s.activeConns, 1)
	defer atomic.AddInt32(&s.activeConns, -1)

	start := time.Now()
	reqID := uuid.NewString()
	log.Info().
		Str("event", "request_received").
		Str("request_id", reqID).
		Str("client_ip", client).
		Str("command", frameCode(data, 2)).
		Int("length", len(data)).
		Int("active_connections", int(atomic.LoadInt32(&s.activeConns))).
		Msg("received command")
	log.Debug().Str("request_id", reqID).Str("request", formatData(preview(data))).Msg("request data")

	resp, err := s.Dispatch(context.Background(), data)
	if err != nil {
		log.Error().Str("request_id", reqID).Str("client_ip", client).Err(err).Msg("malformed request")
		return nil, err
	}

	log.Info().
		Str("event", "response_sent").
		Str("request_id", reqID).
		Str("client_ip", client).
		Str("code", frameCode(resp, 4)).
		Int("length", len(resp)).
		Str("duration", time.Since(start).String()).
		Msg("sent response")
	log.Debug().Str("request_id", reqID).Str("response", formatData(preview(resp))).Msg("response data")

	return resp, nil
}

// handleConvert runs a JSON encoded convert.Job and returns the output path.
func handleConvert(ctx context.Context, p *Plugins, payload []byte) ([]byte, error) {
	var job convert.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", errorcodes.ErrMalformedRequest, err)
	}
	if job.Input == "" || job.OutputFormat == "" {
		return nil, fmt.Errorf("%w: input and output_format are required", errorcodes.ErrMalformedRequest)
	}

	out, err := convert.New(p.Registry).Convert(ctx, job)
	if err != nil {
		return nil, err
	}

	return []byte(out), nil
}

// PluginInfo is the listing entry returned for each initialized plugin.
type PluginInfo struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Version      string   `json:"version"`
	Author       string   `json:"author"`
	FileTypes    []string `json:"file_types"`
	Priority     int      `json:"priority"`
	Installation string   `json:"installation"`
	Disabled     bool     `json:"disabled"`
}

// ListPlugins describes the initialized plugins of r in priority order.
func ListPlugins(r *plugins.Registry) []PluginInfo {
	all := r.InitializedPlugins()
	infos := make([]PluginInfo, 0, len(all))
	for _, pl := range all {
		m := pl.Meta()
		infos = append(infos, PluginInfo{
			Name:         m.Name,
			Kind:         pl.Kind().String(),
			Version:      m.VersionString(),
			Author:       m.Author,
			FileTypes:    m.FileTypes,
			Priority:     m.Priority,
			Installation: m.InstallationType.String(),
			Disabled:     r.IsPluginDisabled(pl),
		})
	}

	return infos
}

func handleListPlugins(_ context.Context, p *Plugins, _ []byte) ([]byte, error) {
	return json.Marshal(ListPlugins(p.Registry))
}

func handleCompress(_ context.Context, _ *Plugins, payload []byte) ([]byte, error) {
	return palmdoc.Compress(payload), nil
}

func handleDecompress(_ context.Context, _ *Plugins, payload []byte) ([]byte, error) {
	return palmdoc.Decompress(payload), nil
}
