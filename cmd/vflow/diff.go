package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the changes that turn one document into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := flow.ReadDocumentFile(args[0])
			if err != nil {
				return err
			}
			next, err := flow.ReadDocumentFile(args[1])
			if err != nil {
				return err
			}

			cs := flow.DiffDocuments(prev, next)
			loggerFromContext(cmd.Context()).Debugf("[Diff] %d node changes, %d edge changes", len(cs.Nodes), len(cs.Edges))

			data, err := json.MarshalIndent(cs, "", "  ")
			if err != nil {
				return fmt.Errorf("encode changes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	return cmd
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
