// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/n8n-io/docker-entrypoint/internal/bootstrap"
	"github.com/n8n-io/docker-entrypoint/internal/certs"
	"github.com/n8n-io/docker-entrypoint/internal/env"
	"github.com/n8n-io/docker-entrypoint/internal/health"
	"github.com/n8n-io/docker-entrypoint/internal/launch"
)

const healthcheckCommand = "healthcheck"

type options struct {
	LogLevel     string `long:"log-level" default:"info" description:"log level"`
	DataDir      string `long:"data-dir" default:"/home/node/.n8n" description:"persistent data directory"`
	CertDir      string `long:"cert-dir" default:"/opt/custom-certificates" description:"custom CA certificate directory"`
	DefaultsFile string `long:"defaults-file" default:"/etc/n8n/entrypoint.yaml" description:"optional YAML file with environment defaults"`
	Supervise    bool   `long:"supervise" description:"spawn and supervise the server instead of replacing the process image"`

	HealthTimeout  time.Duration `long:"health-timeout" default:"5s" description:"healthcheck per-attempt timeout"`
	HealthInterval time.Duration `long:"health-interval" default:"5s" description:"healthcheck pause between attempts"`
	HealthRetries  int           `long:"health-retries" default:"1" description:"healthcheck attempts before reporting unhealthy"`
}

func main() {
	opts, args := getCLIArgs()
	setLogLevel(opts.LogLevel)

	if len(args) > 0 && args[0] == healthcheckCommand {
		os.Exit(runHealthcheck(opts))
	}

	cfg := bootstrap.Config{
		DataDir:      opts.DataDir,
		CertDir:      opts.CertDir,
		DefaultsFile: opts.DefaultsFile,
		ServerPath:   launch.ResolveBinary(),
		RunCommand:   certs.Run,
	}
	if opts.Supervise {
		cfg.Handoff = launch.SuperviseHandoff{}
	} else {
		cfg.Handoff = launch.ExecHandoff{}
	}

	log.Infof("exec '%s' (supervise=%v)", cfg.ServerPath, opts.Supervise)

	exitCode, err := bootstrap.Run(cfg, args)
	if err != nil {
		log.WithError(err).Fatal("Bootstrap failed")
	}
	os.Exit(exitCode)
}

func getCLIArgs() (options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	args, err := parser.ParseArgs(os.Args[1:])

	if err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}

	return opts, args
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Fatal("Failed to set log level. Valid log levels are:", log.AllLevels)
	}

	log.SetLevel(level)
}

// runHealthcheck probes the server's liveness endpoint using the effective
// host and port, so it honors the same PORT override the bootstrap applied.
func runHealthcheck(opts options) int {
	environ := env.NewEnvironment()
	if err := environ.LoadDefaultsFile(opts.DefaultsFile); err != nil {
		log.WithError(err).Warn("Ignoring defaults file")
	}
	environ.ApplyPlatformPortOverride()

	prober := &health.Prober{
		Host:     environ.Host(),
		Port:     environ.Port(),
		Timeout:  opts.HealthTimeout,
		Interval: opts.HealthInterval,
		Attempts: opts.HealthRetries,
	}

	if err := prober.Probe(); err != nil {
		log.WithError(err).Error("Healthcheck failed")
		return 1
	}
	return 0
}
