/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sabouaram/staticd/internal/config"
	"github.com/sabouaram/staticd/internal/logger"
	"github.com/sabouaram/staticd/internal/master"
)

const defaultConfigPath = "server.conf"

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "staticd [config]",
		Short:         "Prefork, multi-process static file server",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRoot,
	}
}

// runRoot loads and validates the configuration, then dispatches to the
// worker or master branch. Every re-exec'd copy of this binary carries
// master.EnvWorkerFlag in its environment, set by the parent before
// cmd.Start; that marker, not an argument or flag, decides the branch.
func runRoot(cmd *cobra.Command, args []string) error {
	cfgPath := defaultConfigPath
	if len(args) > 0 {
		cfgPath = args[0]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg)

	if master.IsWorkerProcess() {
		return master.RunWorkerProcess(cfg, log)
	}
	return master.Run(cfgPath, cfg, log)
}

func newLogger(_ config.Config) logger.Logger {
	return logger.New(os.Stdout, logger.InfoLevel)
}

// run builds the root command, executes it against argv, and returns the
// process exit code: 0 on a clean shutdown, 1 on any initialization or
// runtime failure.
func run(argv []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(argv)

	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
