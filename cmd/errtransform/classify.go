package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/errtransform/internal/errors"
	"github.com/KirkDiggler/errtransform/internal/reporter"
	"github.com/KirkDiggler/errtransform/internal/rules"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

type classifyOptions struct {
	group     string
	kind      string
	message   string
	noDefault bool
	except    []string
}

func (a *app) newClassifyCmd() *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one error with the rules file",
		Long: `Classify builds an error of the given kind and message, runs it through
the rules of a group and prints the error callers would see.`,
		Example: `  errtransform classify --rules rules.yaml --kind TimeoutError --message "read timed out"
  errtransform classify --rules rules.yaml --group billing --kind ProviderError --message "card declined"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runClassify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.group, "group", string(transform.DefaultGroup), "rule group")
	cmd.Flags().StringVar(&opts.kind, "kind", errors.Standard.Name(), "kind of the error to classify")
	cmd.Flags().StringVar(&opts.message, "message", "", "message of the error to classify")
	cmd.Flags().BoolVar(&opts.noDefault, "no-default", false, "skip the default rule of regex groups")
	cmd.Flags().StringSliceVar(&opts.except, "except", nil, "source kinds whose rules are skipped")

	return cmd
}

func (a *app) runClassify(cmd *cobra.Command, opts *classifyOptions) error {
	if a.cfg.Rules == "" {
		return errors.InvalidArgument("a rules file is required, use --rules")
	}

	registry := transform.NewRegistry[*cobra.Command](
		transform.WithReporter(reporter.NewLogger(a.logger)),
		transform.WithLogger(a.logger),
	)
	catalog, err := loadRules(a.cfg.Rules, registry)
	if err != nil {
		return err
	}

	kind, err := lookupKind(catalog, opts.kind)
	if err != nil {
		return err
	}

	handleOpts := []transform.HandleOption{
		transform.InGroup(transform.Group(opts.group)),
		transform.UseDefault(!opts.noDefault),
		transform.Action("classify"),
	}
	for _, name := range opts.except {
		except, err := lookupKind(catalog, name)
		if err != nil {
			return err
		}
		handleOpts = append(handleOpts, transform.Except(except))
	}

	classified := transform.Run(cmd.Context(), registry, cmd, func() error {
		return kind.New(opts.message)
	}, handleOpts...)
	if errors.UnknownGroup.Match(classified) {
		return classified
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind:       %s\n", errors.KindFromError(classified).Reported().Name())
	fmt.Fprintf(out, "code:       %s\n", errors.GetCode(classified))
	fmt.Fprintf(out, "message:    %s\n", errors.GetMessage(classified))
	fmt.Fprintf(out, "reportable: %t\n", errors.IsReportable(classified))
	return nil
}

// loadRules applies the rules file at path to registry and returns the
// catalog of kinds it defined
func loadRules[O any](path string, registry *transform.Registry[O]) (*errors.Catalog, error) {
	f, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}

	catalog := errors.NewCatalog()
	if err := rules.Apply(f, catalog, registry); err != nil {
		return nil, err
	}
	return catalog, nil
}

func lookupKind(catalog *errors.Catalog, name string) (*errors.Kind, error) {
	kind, ok := catalog.Lookup(name)
	if !ok {
		return nil, errors.NotFoundf("unknown kind %q", name)
	}
	return kind, nil
}
