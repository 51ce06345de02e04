/*
DESCRIPTION
  allsky-netsender is a netsender client for an all-sky camera. It captures
  stills at a regular interval, adjusting exposure time and gain between
  frames so that the sky is neither under nor over exposed, and reports the
  frame brightness and camera settings to the cloud.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses.
*/

// allsky-netsender is a netsender client that runs automatic exposure and
// gain control for an all-sky camera.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ausocean/skycam/pi/aeg"
	picamera "github.com/ausocean/skycam/pi/camera"
	"github.com/ausocean/skycam/pi/netlogger"
	"github.com/ausocean/skycam/pi/netsender"
	"github.com/ausocean/skycam/pi/sds"
	"github.com/ausocean/skycam/pi/smartlogger"
	"github.com/ausocean/utils/logging"
)

// Logging configuration.
const (
	logPath      = "/var/log/netsender"
	logVerbosity = logging.Info
	logSuppress  = true
)

// Misc constants.
const (
	netSendRetryTime = 5 * time.Second
	netSendTimeout   = 10 * time.Second
	defaultSleepTime = 60 // Seconds.
)

func main() {
	fileLog := smartlogger.New(logPath)
	netLog := netlogger.New()
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, netLog), logSuppress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := newSession(log, picamera.New(log))
	sess.update(defaultSettings())
	go func() {
		err := sess.run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("capture session stopped", "error", err)
		}
	}()

	log.Debug("initialising netsender client")
	ns, err := netsender.New(log, readPin(sess, sds.New()),
		netsender.WithVarTypes(varTypes),
		netsender.WithTimeout(netSendTimeout),
	)
	if err != nil {
		log.Fatal("could not initialise netsender client", "error", err)
	}

	run(ctx, ns, log, netLog, fileLog, sess)
	log.Info("stopped")
}

// run is the main loop. It runs netsender, sends logs and, when the var sum
// changes, passes the new settings to the capture session. Rotated log files
// are sent only when the RotatedLogs variable is set.
func run(ctx context.Context, ns *netsender.Sender, l logging.Logger, nl *netlogger.Logger, sl *smartlogger.Smartlogger, sess *session) {
	var (
		vs          int
		rotatedLogs bool
	)
	for ctx.Err() == nil {
		l.Debug("running netsender")
		err := ns.Run()
		if err != nil {
			l.Warning("run failed, retrying", "error", err)
			pause(ctx, netSendRetryTime)
			continue
		}

		l.Debug("sending logs")
		err = nl.Send(ns)
		if err != nil {
			l.Warning("logs could not be sent", "error", err)
		}
		if rotatedLogs {
			err = sl.SendLogs(ns)
			if err != nil {
				l.Warning("rotated logs could not be sent", "error", err)
			}
		}

		newVs := ns.VarSum()
		if vs == newVs {
			sleep(ctx, ns, l)
			continue
		}
		vs = newVs
		l.Info("varsum changed", "vs", vs)

		vars, err := ns.Vars()
		if err != nil {
			l.Error("could not get vars", "error", err)
			pause(ctx, netSendRetryTime)
			continue
		}
		l.Debug("got new vars", "vars", vars)

		st, err := parseVars(vars)
		switch {
		case errors.Is(err, aeg.ErrConfig):
			l.Error("invalid controller config, keeping current settings", "error", err)
		case err != nil:
			l.Warning("bad vars replaced with defaults", "error", err)
			sess.update(st)
			rotatedLogs = st.RotatedLogs
		default:
			sess.update(st)
			rotatedLogs = st.RotatedLogs
		}
		sleep(ctx, ns, l)
	}
}

// sleep waits for the monitor period given by the netsender mp param.
func sleep(ctx context.Context, ns *netsender.Sender, l logging.Logger) {
	t, err := strconv.Atoi(ns.Param("mp"))
	if err != nil {
		l.Error("could not get sleep time, using default", "error", err)
		t = defaultSleepTime
	}
	l.Debug("sleeping", "seconds", t)
	pause(ctx, time.Duration(t)*time.Second)
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
