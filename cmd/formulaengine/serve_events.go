package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cellwright/formulaengine"
	"github.com/spf13/cobra"
)

var serveEventsCmd = &cobra.Command{
	Use:   "serve-events",
	Short: "Apply newline-delimited mutation commands from stdin, print fired events",
	Long: `serve-events loads the configured --workbook snapshot, then reads
one JSON mutation command per line from stdin, applying each in turn and
printing every event it triggers (sheet/cell lifecycle, recalculation) as
one JSON object per line on stdout.

Mutation command shape:
  {"op":"set-cell","sheet":"Sheet1","cell":"A1","value":10}
  {"op":"add-sheet","sheet":"Sheet2"}
  {"op":"remove-sheet","sheet":"Sheet2"}
  {"op":"rename-sheet","name":"Sheet1","new_name":"Budget"}`,
	RunE: runServeEvents,
}

func init() {
	rootCmd.AddCommand(serveEventsCmd)
}

// mutationCommand is one line of stdin input to serve-events.
type mutationCommand struct {
	Op      string          `json:"op"`
	Sheet   string          `json:"sheet,omitempty"`
	Cell    string          `json:"cell,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Name    string          `json:"name,omitempty"`
	NewName string          `json:"new_name,omitempty"`
}

func runServeEvents(cmd *cobra.Command, args []string) error {
	engine, err := loadEngine()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	unsubscribe := subscribeAll(engine, enc)
	defer unsubscribe()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var mutation mutationCommand
		if err := json.Unmarshal(line, &mutation); err != nil {
			return fmt.Errorf("decode mutation: %w", err)
		}
		if err := applyMutation(engine, mutation); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func subscribeAll(engine *formulaengine.Engine, enc *json.Encoder) func() {
	kinds := []formulaengine.EventKind{
		formulaengine.EventSheetAdded,
		formulaengine.EventSheetRemoved,
		formulaengine.EventSheetRenamed,
		formulaengine.EventCellChanged,
		formulaengine.EventCellsChanged,
	}
	unsubs := make([]formulaengine.Unsubscribe, 0, len(kinds))
	for _, kind := range kinds {
		unsubs = append(unsubs, engine.Subscribe(kind, func(event formulaengine.Event) {
			_ = enc.Encode(eventToJSON(event))
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func eventToJSON(event formulaengine.Event) map[string]any {
	out := map[string]any{"kind": string(event.Kind)}
	if event.WorkbookName != "" {
		out["workbook"] = event.WorkbookName
	}
	if event.SheetName != "" {
		out["sheet"] = event.SheetName
	}
	if event.OldSheetName != "" {
		out["old_sheet"] = event.OldSheetName
	}
	switch event.Kind {
	case formulaengine.EventCellChanged:
		out["cell"] = event.Address.String()
		out["value"] = formulaengine.EncodeCellValue(event.Value)
	case formulaengine.EventCellsChanged:
		cells := make([]string, len(event.Addresses))
		for i, addr := range event.Addresses {
			cells[i] = addr.String()
		}
		out["cells"] = cells
	}
	return out
}

func applyMutation(engine *formulaengine.Engine, m mutationCommand) error {
	switch m.Op {
	case "set-cell":
		value, err := formulaengine.DecodeSerializedValue(m.Value)
		if err != nil {
			return err
		}
		return engine.SetCellContent(m.Sheet, m.Cell, value)
	case "add-sheet":
		return engine.AddSheet("", m.Sheet)
	case "remove-sheet":
		return engine.RemoveSheet(m.Sheet)
	case "rename-sheet":
		return engine.RenameSheet(m.Name, m.NewName)
	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
}
