package cli

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varietal/varietal/internal/app"
)

type solveOptions struct {
	Channels []string
	Platform string
	Cuda     string
	File     string
}

func newSolveCommand() *cobra.Command {
	opts := solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve [specs...]",
		Short: "Resolve a set of package specs and print the result without installing",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Channels, "channel", []string{"conda-forge"}, "Channel(s) to resolve against (repeatable)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "Target platform/subdir, e.g. linux-64 (defaults to host)")
	cmd.Flags().StringVar(&opts.Cuda, "cuda", "", "CUDA version to inject as a virtual package, if any")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "environment.yml-style file to read channels/dependencies from")

	_ = viper.BindPFlag("channels", cmd.Flags().Lookup("channel"))
	_ = viper.BindPFlag("platform", cmd.Flags().Lookup("platform"))
	_ = viper.BindPFlag("cuda", cmd.Flags().Lookup("cuda"))

	return cmd
}

func runSolve(ctx context.Context, cmd *cobra.Command, opts solveOptions, specs []string) error {
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
	printRecords(resolved.Records)
	return nil
}
