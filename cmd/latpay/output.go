package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// render prints v as JSON when --json or --jq is set, otherwise calls text.
func render(c *cli.Context, v any, text func()) error {
	if c.Bool("json") || len(c.StringSlice("jq")) > 0 {
		return renderJSON(c, v)
	}
	text()
	return nil
}

// renderJSON prints v, passing it through every --jq filter in turn.
func renderJSON(c *cli.Context, v any) error {
	filters := c.StringSlice("jq")
	if len(filters) == 0 {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	doc, err := toGeneric(v)
	if err != nil {
		return err
	}
	results, err := applyJQ(filters, doc)
	if err != nil {
		return err
	}
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(data))
	}
	return nil
}

// toGeneric round-trips v through JSON so gojq sees only maps, slices and
// scalars.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// applyJQ runs filters as a pipeline; each stage consumes every output of
// the previous one.
func applyJQ(filters []string, doc any) ([]any, error) {
	inputs := []any{doc}
	for _, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}

		var outputs []any
		for _, in := range inputs {
			iter := code.Run(in)
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := v.(error); isErr {
					return nil, fmt.Errorf("jq filter %q: %w", filter, err)
				}
				outputs = append(outputs, v)
			}
		}
		inputs = outputs
	}
	return inputs, nil
}
