package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sdelrio0/xyflow-flow/cmd/vflow/internal/ui"
	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/store"
)

func newViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view FILE",
		Short: "Inspect and edit a flow document in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			doc, err := flow.ReadDocumentFile(path)
			if err != nil {
				return err
			}

			s := store.New(doc, store.WithLogger(loggerFromContext(cmd.Context()).WithPrefix("store")))
			defer s.Close()

			p := tea.NewProgram(ui.NewModel(s, path), tea.WithAltScreen())
			final, err := p.Run()
			if err != nil {
				return fmt.Errorf("run inspector: %w", err)
			}
			if m, ok := final.(ui.Model); ok && m.Dirty() {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s has unsaved changes\n", path)
			}
			return nil
		},
	}
	return cmd
}
