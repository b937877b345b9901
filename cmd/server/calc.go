package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tillerstead/tillerpro/internal/calculator"
	"github.com/tillerstead/tillerpro/internal/formulas"
	"github.com/tillerstead/tillerpro/internal/pricing"
	"github.com/tillerstead/tillerpro/internal/projectstate"
)

func newCalcCmd(a *app) *cobra.Command {
	var (
		sets   []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "calc [tool]",
		Short: "Run a calculator or quick estimate from the command line",
		Long: "Run one calculator against an empty project, e.g.\n" +
			"  tillerpro calc tile --set area=120 --set width=12 --set length=24\n" +
			"  tillerpro calc grout-tcna --set area=100 --set length=12 --set width=12 --set jointWidth=0.125 --set jointDepth=0.375\n" +
			"Without a tool it lists what is available.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listTools(out)
			}
			values, err := parseSets(sets)
			if err != nil {
				return err
			}

			tool := args[0]
			if _, ok := estimators[tool]; ok && !isCalculator(tool) {
				body, err := json.Marshal(values)
				if err != nil {
					return err
				}
				res, err := runEstimate(tool, body)
				if err != nil {
					return err
				}
				return printJSON(out, res)
			}

			catalog, err := pricing.LoadCatalog(a.cfg.Pricing.CatalogPath)
			if err != nil {
				return err
			}
			res, ms, err := runTool(tool, values, catalog, a)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, map[string]any{"result": res, "materials": ms})
			}
			printResult(out, res, ms)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as name=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

// runTool calculates one tool in a throwaway project session.
func runTool(tool string, values map[string]any, catalog *pricing.Catalog, a *app) (*calculator.Result, []calculator.Material, error) {
	store := projectstate.New(projectstate.WithLogger(a.log))
	session, err := calculator.NewSession(store, calculator.DefaultSpecs(),
		calculator.WithLogger(a.log),
		calculator.WithBudget(catalog, catalog.Rates),
	)
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	if err := session.SetFields(tool, values); err != nil {
		return nil, nil, err
	}
	res, err := session.Calculate(tool)
	var verr *formulas.ValidationError
	if errors.As(err, &verr) {
		return nil, nil, fmt.Errorf("%s needs: %s", tool, strings.Join(verr.Fields, ", "))
	}
	if err != nil {
		return nil, nil, err
	}
	return res, session.Materials(), nil
}

func isCalculator(name string) bool {
	for _, spec := range calculator.DefaultSpecs() {
		if spec.Domain == name {
			return true
		}
	}
	return false
}

func parseSets(sets []string) (map[string]any, error) {
	values := make(map[string]any, len(sets))
	for _, kv := range sets {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("--set %q: want name=value", kv)
		}
		values[strings.TrimSpace(name)] = scalar(strings.TrimSpace(raw))
	}
	return values, nil
}

// scalar types a --set value so it decodes into estimate inputs.
func scalar(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func listTools(w io.Writer) error {
	specs, err := calculator.Order(calculator.DefaultSpecs())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Calculators:")
	for _, spec := range specs {
		names := make([]string, 0, len(spec.Fields))
		for _, f := range spec.Fields {
			n := f.Name
			if f.Required {
				n += "*"
			}
			names = append(names, n)
		}
		fmt.Fprintf(w, "  %-14s %s\n", spec.Domain, strings.Join(names, " "))
	}
	fmt.Fprintln(w, "Quick estimates:")
	for _, k := range estimateKinds() {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}

func printResult(w io.Writer, res *calculator.Result, ms []calculator.Material) {
	fmt.Fprintf(w, "%s\n", res.Domain)
	for _, n := range res.Notes {
		fmt.Fprintf(w, "  note: %s\n", n)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, m := range ms {
		line := fmt.Sprintf("  %s: %s", m.Name, m.Display())
		if m.Notes != "" {
			line += " (" + m.Notes + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
