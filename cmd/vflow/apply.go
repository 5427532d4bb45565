package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

func newApplyCommand() *cobra.Command {
	var docPath, changesPath, edgesPath, outPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a batch of changes to a flow document",
		Long: `Reads a document and a change set ({"nodes": [...], "edges": [...]}),
applies the node changes then the edge changes in order, and writes the
resulting document. --edges reads an extra list of edge changes that runs
after the change set's own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			p := newProgress(logger)

			doc, err := flow.ReadDocumentFile(docPath)
			if err != nil {
				return err
			}

			var cs flow.ChangeSet
			if changesPath != "" {
				if cs, err = flow.ReadChangeSetFile(changesPath); err != nil {
					return err
				}
			}
			if edgesPath != "" {
				edges, err := readEdgeChanges(edgesPath)
				if err != nil {
					return err
				}
				cs = cs.Merge(flow.ChangeSet{Edges: edges})
			}
			logger.Debugf("[Apply] %d node changes, %d edge changes", len(cs.Nodes), len(cs.Edges))

			result := cs.Apply(doc)
			if outPath == "" {
				return flow.WriteDocument(result, cmd.OutOrStdout())
			}
			if err := flow.WriteDocumentFile(result, outPath); err != nil {
				return err
			}
			p.done(fmt.Sprintf("Wrote %s with %d nodes, %d edges", outPath, len(result.Nodes), len(result.Edges)))
			return nil
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "Flow document (JSON or YAML)")
	cmd.Flags().StringVar(&changesPath, "changes", "", "Change set file (JSON or YAML)")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "Extra edge change list (JSON or YAML array)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (defaults to stdout)")
	cmd.MarkFlagRequired("doc")

	return cmd
}

// readEdgeChanges reads a bare list of wire edge changes
func readEdgeChanges(path string) ([]flow.EdgeChange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var wire []flow.WireChange
	if isYAMLFile(path) {
		var generic []any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	changes, err := flow.EdgeChangesFromWire(wire)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return changes, nil
}
