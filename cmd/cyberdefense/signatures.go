package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daisymeal/cyberdefense/internal/adapters/detection"
	"github.com/daisymeal/cyberdefense/internal/adapters/output"
)

var signaturesFormat string

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "List the active signature table in priority order",
	Long: `List the built-in signatures followed by any configured in
detection.signatures. The output in yaml form can be pasted back into the
config file.

Examples:
  cyberdefense signatures
  cyberdefense signatures --format yaml`,
	RunE: runSignatures,
}

func init() {
	signaturesCmd.Flags().StringVar(&signaturesFormat, "format", "table", "output format: table, json or yaml")
}

func runSignatures(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	table, err := detection.BuildSignatureTable(cfg.Detection.Signatures)
	if err != nil {
		return err
	}

	sigs := table.Signatures()
	defs := make([]detection.SignatureDefinition, len(sigs))
	for i, sig := range sigs {
		defs[i] = sig.Definition()
	}

	switch signaturesFormat {
	case "table":
		fmt.Print(output.RenderSignatureTable(defs))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(defs)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]interface{}{
			"detection": map[string]interface{}{"signatures": defs},
		})
	default:
		return fmt.Errorf("unknown format %q: use table, json or yaml", signaturesFormat)
	}
	return nil
}
