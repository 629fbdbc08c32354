package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varietal/varietal/internal/app"
)

type createOptions struct {
	Channels []string
	Platform string
	Prefix   string
	Cuda     string
	Workers  int
	File     string
}

func newCreateCommand() *cobra.Command {
	opts := createOptions{}
	cmd := &cobra.Command{
		Use:   "create [specs...]",
		Short: "Resolve and install a set of package specs into a prefix",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Channels, "channel", []string{"conda-forge"}, "Channel(s) to resolve against (repeatable)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "Target platform/subdir, e.g. linux-64 (defaults to host)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Install prefix (required)")
	cmd.Flags().StringVar(&opts.Cuda, "cuda", "", "CUDA version to inject as a virtual package, if any")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Concurrent link workers")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "environment.yml-style file to read channels/dependencies from")
	_ = cmd.MarkFlagRequired("prefix")

	_ = viper.BindPFlag("channels", cmd.Flags().Lookup("channel"))
	_ = viper.BindPFlag("platform", cmd.Flags().Lookup("platform"))
	_ = viper.BindPFlag("prefix", cmd.Flags().Lookup("prefix"))
	_ = viper.BindPFlag("cuda", cmd.Flags().Lookup("cuda"))
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runCreate(ctx context.Context, cmd *cobra.Command, opts createOptions, specs []string) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	service.Platform = resolveString(cmd, opts.Platform, "platform", "platform")
	service.CUDA = resolveString(cmd, opts.Cuda, "cuda", "cuda")

	channels, mergedSpecs, err := mergeEnvFile(opts.File, resolveStrings(cmd, opts.Channels, "channels", "channel"), specs)
	if err != nil {
		return err
	}
	if len(mergedSpecs) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no package specs given: pass specs as arguments or --file")
	}

	resolved, err := service.Resolve(ctx, app.ResolveRequest{
		Channels: channels,
		Specs:    mergedSpecs,
	})
	if err != nil {
		return err
	}

	prefix := resolveString(cmd, opts.Prefix, "prefix", "prefix")
	workers := resolveInt(cmd, opts.Workers, "workers", "workers")

	result, err := service.Install(ctx, app.InstallRequest{
		Records: resolved.Records,
		Prefix:  prefix,
		Workers: workers,
	})
	if err != nil {
		return err
	}

	printRecords(resolved.Records)
	fmt.Printf("\nlinked %d files into %s\n\n", result.Linked, prefix)
	fmt.Print(activationHint(prefix))
	return nil
}
