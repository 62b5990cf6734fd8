// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"git.lukeshu.com/go/lowmemjson"

	"github.com/CaptWake/btf2json/internal/arch"
	"github.com/CaptWake/btf2json/internal/btf"
	"github.com/CaptWake/btf2json/internal/diagnostics"
	"github.com/CaptWake/btf2json/internal/isf"
	"github.com/CaptWake/btf2json/internal/symbolmap"
	"github.com/CaptWake/btf2json/lib/profile"
	"github.com/CaptWake/btf2json/lib/textui"
)

type logLevelFlag struct {
	logrus.Level
}

func (lvl *logLevelFlag) Type() string { return "loglevel" }
func (lvl *logLevelFlag) Set(str string) error {
	var err error
	lvl.Level, err = logrus.ParseLevel(str)
	return err
}

var _ pflag.Value = (*logLevelFlag)(nil)

func main() {
	logLevelFlag := logLevelFlag{
		Level: logrus.InfoLevel,
	}
	var btfFlag string
	var mapFlag string
	var bannerFlag string
	archFlag := arch.NewFlag()

	argparser := &cobra.Command{
		Use:   "btf2json --btf=vmlinux.btf [flags]",
		Short: "Build a Volatility3 ISF JSON profile from a kernel BTF blob",

		Args: cobra.NoArgs,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.Flags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	argparser.Flags().StringVar(&btfFlag, "btf", "", "path to the kernel's `vmlinux.btf` (or module .btf) blob")
	if err := argparser.MarkFlagFilename("btf"); err != nil {
		panic(err)
	}
	if err := argparser.MarkFlagRequired("btf"); err != nil {
		panic(err)
	}
	argparser.Flags().StringVar(&mapFlag, "map", "", "path to a System.map or /proc/kallsyms `symbol_map` file")
	if err := argparser.MarkFlagFilename("map"); err != nil {
		panic(err)
	}
	if err := argparser.MarkFlagRequired("map"); err != nil {
		panic(err)
	}
	argparser.Flags().StringVar(&bannerFlag, "banner", "", "override the profile's linux.kernel.banner (default: the linux_banner symbol's address, if present)")
	argparser.Flags().Var(&archFlag, "arch", "target architecture for the profile's pointer base type (x86_64, arm64, i386)")
	stopProfiling := profile.AddProfileFlags(argparser.Flags(), "debug-")

	argparser.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		logger := logrus.New()
		logger.SetLevel(logLevelFlag.Level)
		ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

		defer func() {
			if _err := stopProfiling(); err == nil && _err != nil {
				err = _err
			}
		}()

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			return run(ctx, btfFlag, mapFlag, bannerFlag, archFlag.Arch, logLevelFlag.Level >= logrus.DebugLevel)
		})
		return grp.Wait()
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, btfPath, mapPath, banner string, a arch.Arch, debugDump bool) (err error) {
	btfBuf, err := readBTFFile(ctx, btfPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", btfPath, err)
	}

	spec, err := btf.Load(btfBuf)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", btfPath, err)
	}
	dlog.Infof(ctx, "decoded %d BTF types from %s", len(spec.Types), btfPath)
	dlog.Debugf(ctx, "memory after decode: %v", &textui.LiveMemUse{})

	if debugDump {
		dumpCfg := spew.NewDefaultConfig()
		dumpCfg.DisablePointerAddresses = true
		for _, t := range spec.Types {
			dlog.Debugf(ctx, "%s", dumpCfg.Sdump(t))
		}
	}

	var syms []symbolmap.Symbol
	if mapPath != "" {
		syms, err = readSymbolMap(ctx, mapPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapPath, err)
		}
		dlog.Infof(ctx, "parsed %d symbols from %s", len(syms), mapPath)
	}

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, syms, a, banner, diag)
	if err != nil {
		return fmt.Errorf("building profile: %w", err)
	}
	if summary := diag.Summary(); summary != "" {
		dlog.Warn(ctx, summary)
	}

	if err := writeJSONFile(os.Stdout, doc, lowmemjson.ReEncoder{
		Indent: "",
	}); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
