package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"text/tabwriter"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	"github.com/andrei-cloud/ebookconv/internal/config"
	"github.com/andrei-cloud/ebookconv/internal/convert"
	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/server"
	"github.com/spf13/cobra"
)

// client sends request frames to a running server.
type client struct {
	send  func(req *[]byte) ([]byte, error)
	close func()
}

func dial(addr string, timeout time.Duration) *client {
	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()
			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, addr, nil)
	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()

	return &client{
		send: broker.Send,
		close: func() {
			broker.Close()
			pool.Close()
		},
	}
}

func (c *client) Close() {
	c.close()
}

// call sends cmd with payload and returns the body of a successful response.
func (c *client) call(cmd string, payload []byte) ([]byte, error) {
	req := append([]byte(cmd), payload...)
	resp, err := c.send(&req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}

	return decodeResponse(resp)
}

// decodeResponse splits a response frame and maps its code back to an error.
func decodeResponse(resp []byte) ([]byte, error) {
	if len(resp) < 4 {
		return nil, fmt.Errorf("%w: short response %q", errorcodes.ErrMalformedRequest, resp)
	}

	code := string(resp[2:4])
	if code == errorcodes.Err00.CodeOnly() {
		return resp[4:], nil
	}
	if e, ok := errorcodes.Lookup(code); ok {
		return nil, e
	}

	return nil, fmt.Errorf("server failed with code %s", code)
}

// NewRemoteCommand creates the remote command group.
func NewRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Send requests to a running conversion server",
	}

	cmd.PersistentFlags().String("address", "", "server address (default: server.host:server.port)")
	cmd.PersistentFlags().Duration("timeout", 5*time.Minute, "request timeout")

	cmd.AddCommand(newRemoteConvertCommand(), newRemotePluginsCommand())

	return cmd
}

func remoteClient(cmd *cobra.Command) *client {
	env.InitLogger(true)

	addr, _ := cmd.Flags().GetString("address")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if addr == "" {
		cfg := config.Get()
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return dial(addr, timeout)
}

func newRemoteConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT",
		Short: "Convert a book on the server",
		Long:  `Ask the server to convert INPUT. Paths are resolved on the server side.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("to")
			output, _ := cmd.Flags().GetString("output")
			options, _ := cmd.Flags().GetStringToString("option")

			payload, err := json.Marshal(convert.Job{Input: args[0], OutputFormat: to, Output: output, Options: options})
			if err != nil {
				return err
			}

			c := remoteClient(cmd)
			defer c.Close()

			out, err := c.call("CV", payload)
			if err != nil {
				return err
			}
			cmd.Println(string(out))

			return nil
		},
	}

	cmd.Flags().String("to", "", "output format")
	cmd.Flags().StringP("output", "o", "", "output path on the server")
	cmd.Flags().StringToString("option", nil, "conversion option passed to plugins, key=value")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newRemotePluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins loaded by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := remoteClient(cmd)
			defer c.Close()

			body, err := c.call("LP", nil)
			if err != nil {
				return err
			}

			var infos []server.PluginInfo
			if err := json.Unmarshal(body, &infos); err != nil {
				return fmt.Errorf("decode plugin list: %w", err)
			}

			return writeInfos(cmd.OutOrStdout(), infos)
		},
	}
}

func writeInfos(out io.Writer, infos []server.PluginInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "Name\tKind\tVersion\tInstalled\tStatus")
	for _, i := range infos {
		status := "enabled"
		if i.Disabled {
			status = "disabled"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", i.Name, i.Kind, i.Version, i.Installation, status)
	}

	return w.Flush()
}
