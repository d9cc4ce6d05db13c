package app

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coreason-ai/pmc-etl/jats"
	"github.com/coreason-ai/pmc-etl/schema"
)

var file string

func NewCmdValidate(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a JATS document against the silver schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File")

	return cmd
}

func doValidate(out io.Writer) error {
	if file == "" {
		return errors.New("parameter empty")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "cannot read file")
	}
	rec, err := jats.Parse(data, jats.Passthrough{})
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.New("no article element found")
	}
	pmcid := "(none)"
	if rec.PMCID != nil {
		pmcid = *rec.PMCID
	}
	fmt.Fprintln(out, "Article found!", pmcid)
	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	violations, err := validator.Validate(rec)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		fmt.Fprintln(out, "The article is invalid!")
		for _, v := range violations {
			fmt.Fprintln(out, v)
		}
	}
	return nil
}
