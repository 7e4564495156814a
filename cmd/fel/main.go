// Command fel validates FEL documents from the command line: DTE XML files
// against the SAT schema set and rulebook, and anulación requests.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	fel "github.com/rkingkong/validor-fel-sat-gt"
)

var (
	flagConfig  string
	flagJSON    bool
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "fel",
		Short:         "Validador de documentos FEL (Guatemala)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "archivo de configuración")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "salida en formato JSON")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "bitácora detallada")

	root.AddCommand(validateCmd(), anularCmd(), rulesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fel:", err)
		os.Exit(2)
	}
}

func newValidator() (*fel.Validator, error) {
	cfg, err := fel.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	cache := fel.NewSchemaCache(cfg, log)
	schemas := fel.NewSchemaSet(cache, log)
	return fel.NewValidator(cfg, schemas, nil, nil, log), nil
}

func report(verdict *fel.Verdict) error {
	if flagJSON {
		out, err := verdict.MarshalIndentJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	fmt.Print(verdict.Format())
	return nil
}
