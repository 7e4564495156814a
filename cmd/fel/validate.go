package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fel "github.com/rkingkong/validor-fel-sat-gt"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate ARCHIVO...",
		Short: "Valida uno o más DTE contra el esquema XSD y las reglas SAT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newValidator()
			if err != nil {
				return err
			}
			docs := make([][]byte, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, data)
			}
			verdicts, summary := v.ValidateBatch(cmd.Context(), docs)
			for i, verdict := range verdicts {
				if len(verdicts) > 1 {
					fmt.Printf("== %s ==\n", args[i])
				}
				if err := report(verdict); err != nil {
					return err
				}
			}
			if len(verdicts) > 1 && !flagJSON {
				fmt.Printf("\nTotal: %d  válidos: %d  inválidos: %d\n",
					summary.Total, summary.Valid, summary.Invalid)
			}
			if summary.Invalid > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	return cmd
}

func anularCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "anular ARCHIVO",
		Short: "Valida una solicitud de anulación de DTE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newValidator()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			verdict := v.ValidateAnulacion(cmd.Context(), data)
			if err := report(verdict); err != nil {
				return err
			}
			if !verdict.IsValid {
				os.Exit(1)
			}
			return nil
		},
	}
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Lista las reglas del catálogo implementado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Catálogo de reglas, versión %s\n\n", fel.RulebookVersion)
			for _, code := range sortedRuleCodes() {
				r := fel.Rulebook[code]
				fmt.Printf("%-10s %-15s %-22s %s\n", r.Code, r.Severity, r.Category, r.Description)
			}
			return nil
		},
	}
}
