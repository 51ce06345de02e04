/*
DESCRIPTION
  netlogger.go provides an io.Writer that buffers log output and ships it to
  the cloud service on a netsender text pin.

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

// Package netlogger buffers log output for sending to the cloud service
// with netsender.
package netlogger

import (
	"bytes"
	"strings"
	"sync"

	"github.com/ausocean/skycam/pi/netsender"
	"github.com/ausocean/utils/sliceutils"
)

const (
	logPin = "T0"

	// DefaultLimit is the default most unsent bytes held.
	DefaultLimit = 1 << 20
)

// Logger buffers log output until Send is called. When the buffer exceeds
// its limit the oldest whole lines are dropped. Logger implements io.Writer
// and is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	unsent bytes.Buffer
	limit  int
}

// New returns a Logger holding at most DefaultLimit unsent bytes.
func New() *Logger {
	return &Logger{limit: DefaultLimit}
}

// NewWithLimit returns a Logger holding at most limit unsent bytes.
func NewWithLimit(limit int) *Logger {
	return &Logger{limit: limit}
}

// Write implements io.Writer.
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.unsent.Write(p)
	l.trim()
	return n, err
}

// trim drops the oldest whole lines until the buffer is within its limit.
func (l *Logger) trim() {
	over := l.unsent.Len() - l.limit
	if l.limit <= 0 || over <= 0 {
		return
	}
	b := l.unsent.Bytes()[over:]
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	kept := append([]byte(nil), b...)
	l.unsent.Reset()
	l.unsent.Write(kept)
}

// Len returns the number of unsent bytes.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unsent.Len()
}

// Send sends unsent logs to the service if the T0 pin is configured as an
// input. Otherwise unsent logs are discarded. Logs that fail to send are
// kept for the next call.
func (l *Logger) Send(ns *netsender.Sender) error {
	send := sliceutils.ContainsString(strings.Split(ns.Param("ip"), ","), logPin)

	// The lock is not held while sending since the sender logs to l.
	l.mu.Lock()
	logs := append([]byte(nil), l.unsent.Bytes()...)
	l.unsent.Reset()
	l.mu.Unlock()
	if len(logs) == 0 || !send {
		return nil
	}

	pin := netsender.Pin{Name: logPin, Value: len(logs), Data: logs, MimeType: "application/json"}
	_, _, err := ns.Send(netsender.RequestPoll, []netsender.Pin{pin})
	if err != nil {
		l.mu.Lock()
		newer := append([]byte(nil), l.unsent.Bytes()...)
		l.unsent.Reset()
		l.unsent.Write(logs)
		l.unsent.Write(newer)
		l.trim()
		l.mu.Unlock()
		return err
	}
	return nil
}
