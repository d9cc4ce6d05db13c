package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coreason-ai/pmc-etl/jats"
	"github.com/coreason-ai/pmc-etl/pipeline"
)

var (
	parseFormat string
	parseGold   bool
)

func NewCmdParse(out io.Writer, logger logrus.FieldLogger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse JATS documents and print the extracted records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doParse(out, logger, afero.NewOsFs(), args)
		},
	}

	cmd.Flags().StringVarP(&parseFormat, "format", "o", "json", "Output format (json, yaml)")
	cmd.Flags().BoolVar(&parseGold, "gold", false, "Print the gold record instead of the silver record")

	return cmd
}

func doParse(out io.Writer, logger logrus.FieldLogger, fs afero.Fs, paths []string) error {
	if parseFormat != "json" && parseFormat != "yaml" {
		return errors.Errorf("unsupported format %q", parseFormat)
	}
	for _, path := range paths {
		payload, err := afero.ReadFile(fs, path)
		if err != nil {
			return errors.Wrap(err, "cannot read file")
		}
		ts := time.Now().UTC()
		rec, err := jats.Parse(payload, jats.Passthrough{
			Manifest: map[string]interface{}{},
			Ingestion: jats.IngestionMetadata{
				SourceFilePath:  path,
				IngestionTS:     &ts,
				IngestionSource: "LOCAL",
			},
		})
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		if rec == nil {
			logger.WithField("file_path", path).Warn("No article element found")
			continue
		}

		var doc interface{} = rec
		if parseGold {
			doc = pipeline.TransformGold(rec)
		}
		if err := render(out, doc); err != nil {
			return err
		}
	}
	return nil
}

func render(out io.Writer, doc interface{}) error {
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if parseFormat == "json" {
		_, err = fmt.Fprintln(out, string(blob))
		return err
	}

	// JSON is YAML: decoding it into a node keeps the field order.
	var node yaml.Node
	if err := yaml.Unmarshal(blob, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
