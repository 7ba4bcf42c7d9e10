// Package palmdoc provides PalmDOC compression commands.
package palmdoc

import (
	"fmt"
	"io"
	"os"

	"github.com/andrei-cloud/ebookconv/pkg/palmdoc"
	"github.com/spf13/cobra"
)

// NewPalmDocCommand creates the palmdoc command with subcommands.
func NewPalmDocCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "palmdoc",
		Short: "PalmDOC compression",
		Long: `Compress and decompress data with the PalmDOC LZ77 variant used by
MOBI text records. Use "-" for stdin or stdout.`,
		Example: `  # Compress a text file
  ebookconv palmdoc compress book.txt book.pdc

  # Decompress from stdin to stdout
  ebookconv palmdoc decompress - - < book.pdc`,
	}

	compressCmd, err := newCodecCommand("compress", "Compress a file", palmdoc.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create 'compress' subcommand: %w", err)
	}
	cmd.AddCommand(compressCmd)

	decompressCmd, err := newCodecCommand("decompress", "Decompress a file", palmdoc.Decompress)
	if err != nil {
		return nil, fmt.Errorf("failed to create 'decompress' subcommand: %w", err)
	}
	cmd.AddCommand(decompressCmd)

	return cmd, nil
}

func newCodecCommand(name, short string, codec func([]byte) []byte) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   name + " INPUT OUTPUT",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], args[1], codec)
		},
	}
	cmd.Flags().Bool("stats", false, "print input and output sizes to stderr")

	return cmd, nil
}

func run(cmd *cobra.Command, in, out string, codec func([]byte) []byte) error {
	var data []byte
	var err error
	if in == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(in)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	result := codec(data)

	if out == "-" {
		_, err = cmd.OutOrStdout().Write(result)
	} else {
		err = os.WriteFile(out, result, 0o644)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		cmd.PrintErrf("%d -> %d bytes\n", len(data), len(result))
	}

	return nil
}
