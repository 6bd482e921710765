// Copyright 2016 Open Source Geospatial Foundation - all rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may not
// use this file except in compliance with the License. A copy of the
// License is located at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package main starts the wps remote agent: one process serving one
// processing service over the message bus.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geoserver/wps-remote-agent/agent/appconfig"
	"github.com/geoserver/wps-remote-agent/agent/context"
	"github.com/geoserver/wps-remote-agent/agent/log"
	"github.com/geoserver/wps-remote-agent/agent/messagebus"
	"github.com/geoserver/wps-remote-agent/agent/monitor"
	"github.com/geoserver/wps-remote-agent/agent/servicedef"
	"github.com/geoserver/wps-remote-agent/agent/supervisor"
)

// shutdownTimeout bounds how long running supervision tasks may delay
// process exit after a termination signal.
const shutdownTimeout = 30 * time.Second

func main() {
	var remoteConfigPath string
	var serviceConfigPath string
	flag.StringVar(&remoteConfigPath, "r", "", "path of the remote agent configuration file")
	flag.StringVar(&serviceConfigPath, "s", "", "path of the service configuration file")
	flag.Parse()

	if serviceConfigPath == "" {
		fmt.Fprintln(os.Stderr, "usage: wps-remote-agent -r <remote config> -s <service config>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config, err := appconfig.Config(remoteConfigPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load agent configuration: %v\n", err)
		os.Exit(1)
	}

	logger := log.Logger(config.SeelogConfigPath)
	defer logger.Close()
	defer logger.Flush()

	ctx := context.Default(logger, config)
	if err := run(ctx, remoteConfigPath, serviceConfigPath); err != nil {
		logger.Errorf("agent terminated: %v", err)
		logger.Flush()
		os.Exit(1)
	}
}

func run(ctx context.T, remoteConfigPath string, serviceConfigPath string) error {
	log := ctx.Log()

	def, err := servicedef.Load(serviceConfigPath)
	if err != nil {
		return err
	}

	bus, err := messagebus.New(ctx)
	if err != nil {
		return err
	}

	resourceMonitor := monitor.NewResourceMonitor(ctx, def.LoadAverageScanMinutes)
	if err = resourceMonitor.Start(); err != nil {
		return err
	}
	defer resourceMonitor.Stop()

	bot, err := supervisor.NewServiceBot(ctx, bus, def, resourceMonitor, remoteConfigPath, serviceConfigPath)
	if err != nil {
		return err
	}

	// termination signals wind down running supervisions before exit
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		received := <-signals
		log.Infof("received signal %v, shutting down", received)
		bot.Shutdown(shutdownTimeout)
	}()

	return bot.Run()
}
