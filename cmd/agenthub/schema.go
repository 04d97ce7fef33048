package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/bazelment/agenthub/schema"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the universal event JSON schema",
	Long: `Generates a JSON schema document for the universal event format:
the event envelope plus one schema per data variant, keyed by the
variant's "type" tag. Useful for client codegen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema()
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOut, "out", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}

// eventEnvelope mirrors schema.UniversalEvent with the data union left
// open; the per-variant schemas below describe its shapes.
type eventEnvelope struct {
	ID        int64          `json:"id" jsonschema:"description=Per-session id starting at 1 with no gaps"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Agent     string         `json:"agent" jsonschema:"enum=claude,enum=codex,enum=amp,enum=opencode,enum=mock"`
	Data      map[string]any `json:"data" jsonschema:"description=Tagged union; see data_variants keyed by the type field"`
}

func runSchema() error {
	doc := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"title":   "agenthub universal event",
		"event":   generateSchema[eventEnvelope](),
		"data_variants": map[string]json.RawMessage{
			string(schema.EventTypeMessage):         generateSchema[schema.MessageData](),
			string(schema.EventTypeStarted):         generateSchema[schema.StartedData](),
			string(schema.EventTypeError):           generateSchema[schema.ErrorData](),
			string(schema.EventTypeQuestionAsked):   generateSchema[schema.QuestionData](),
			string(schema.EventTypePermissionAsked): generateSchema[schema.PermissionData](),
			string(schema.EventTypeSessionEnded):    generateSchema[schema.SessionEndedData](),
			string(schema.EventTypeUnknown):         generateSchema[schema.UnknownData](),
		},
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if schemaOut != "" {
		return os.WriteFile(schemaOut, out, 0o644)
	}
	_, err = os.Stdout.Write(out)
	return err
}

// generateSchema reflects a JSON schema from a Go struct type, inlining
// definitions so each variant stands alone.
func generateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	s := reflector.Reflect(zero)

	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("generate schema for %T: %v", zero, err))
	}
	return json.RawMessage(b)
}
