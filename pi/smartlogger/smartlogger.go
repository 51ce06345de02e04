/*
DESCRIPTION
  smartlogger.go provides a rotating file logger whose rotated files can be
  sent to the cloud service, so logs written while offline are not lost.

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

// Package smartlogger provides log file rotation and sending of rotated log
// files to the cloud service for storage.
package smartlogger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/skycam/pi/netsender"
	"github.com/ausocean/utils/sliceutils"
)

// Rotation defaults.
const (
	logName    = "netsender"
	maxSize    = 500 // MB.
	maxBackups = 10
	maxAge     = 28 // Days.
)

const (
	logPin   = "T0"
	mimeType = "text/plain"
	backups  = "backups"
)

// Smartlogger is an io.Writer writing to a rotated log file in a directory.
type Smartlogger struct {
	dir      string
	roller   *lumberjack.Logger
	keepLogs bool
}

// New returns a Smartlogger writing to netsender.log in dir.
func New(dir string) *Smartlogger {
	return &Smartlogger{
		dir: dir,
		roller: &lumberjack.Logger{
			Filename:   filepath.Join(dir, logName+".log"),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		},
	}
}

// Write implements io.Writer.
func (s *Smartlogger) Write(p []byte) (int, error) { return s.roller.Write(p) }

// Rotate closes the current log file and starts a new one.
func (s *Smartlogger) Rotate() error { return s.roller.Rotate() }

// Close closes the current log file.
func (s *Smartlogger) Close() error { return s.roller.Close() }

// SetKeepLogs sets whether sent log files are moved to a backups directory
// rather than deleted.
func (s *Smartlogger) SetKeepLogs(keep bool) { s.keepLogs = keep }

// SendLogs sends each rotated log file, oldest first, on the T0 pin if it is
// configured as an input. Sent files are deleted or moved to backups. Files
// that fail to send are left for the next call.
func (s *Smartlogger) SendLogs(ns *netsender.Sender) error {
	if !sliceutils.ContainsString(strings.Split(ns.Param("ip"), ","), logPin) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(s.dir, logName+"-*.log"))
	if err != nil {
		return fmt.Errorf("could not glob log files: %w", err)
	}

	var errs []error
	for _, f := range files {
		err := s.send(ns, f)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Smartlogger) send(ns *netsender.Sender, path string) error {
	name := filepath.Base(path)
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", name, err)
	}

	pin := netsender.Pin{Name: logPin, Value: len(b), Data: b, MimeType: mimeType}
	_, _, err = ns.Send(netsender.RequestPoll, []netsender.Pin{pin})
	if err != nil {
		return fmt.Errorf("could not send %s: %w", name, err)
	}

	if !s.keepLogs {
		err = os.Remove(path)
		if err != nil {
			return fmt.Errorf("could not delete %s: %w", name, err)
		}
		return nil
	}
	err = os.MkdirAll(filepath.Join(s.dir, backups), 0755)
	if err != nil {
		return fmt.Errorf("could not create backups directory: %w", err)
	}
	err = os.Rename(path, filepath.Join(s.dir, backups, name))
	if err != nil {
		return fmt.Errorf("could not move %s: %w", name, err)
	}
	return nil
}
