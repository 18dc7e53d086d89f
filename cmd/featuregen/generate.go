package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/featuregen/internal/feature"
	"github.com/yourorg/featuregen/internal/generator"
	"github.com/yourorg/featuregen/pkg/types"
)

// readInput returns the contents of path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func newGenerateCmd(g *globals) *cobra.Command {
	var file, text, operation, outPath string
	var apiCtx types.APIContext
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Karate scenarios from a requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			requirement := text
			if requirement == "" && file != "" {
				var err error
				if requirement, err = readInput(cmd, file); err != nil {
					return err
				}
			}
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.controller(cmd.Context()).Generate(cmd.Context(), generator.Request{
				Requirement: requirement,
				APIContext:  apiCtx,
				Operation:   operation,
			})
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(res.Output), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, id %s)\n", outPath, res.TierLabel, res.ID)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "requirement document path, - for stdin")
	cmd.Flags().StringVar(&text, "text", "", "requirement text")
	cmd.Flags().StringVar(&operation, "operation", string(types.OperationBoth), "POSITIVE, NEGATIVE or BOTH")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the feature to this path")
	cmd.Flags().StringVar(&apiCtx.Endpoint, "endpoint", "", "target API endpoint")
	cmd.Flags().StringVar(&apiCtx.Method, "method", "", "HTTP method every scenario must use")
	cmd.Flags().StringVar(&apiCtx.Payload, "payload", "", "example request payload")
	cmd.Flags().StringVar(&apiCtx.AcceptHeader, "accept", "", "Accept header of the target API")
	cmd.MarkFlagsOneRequired("file", "text")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <feature-file>",
		Short: "Check a feature file for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			rep := feature.Validate(text)
			out := cmd.OutOrStdout()
			for _, e := range rep.Errors {
				fmt.Fprintln(out, "error:", e)
			}
			for _, w := range rep.Warnings {
				fmt.Fprintln(out, "warning:", w)
			}
			for _, s := range rep.Suggestions {
				fmt.Fprintln(out, "suggestion:", s)
			}
			if !rep.IsValid {
				return errors.New("feature is invalid")
			}
			fmt.Fprintln(out, "feature is valid")
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <feature-file>",
		Short: "Print the structured test cases of a feature file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, feature.Parse(text))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
