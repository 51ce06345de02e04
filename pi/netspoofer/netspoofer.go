/*
DESCRIPTION
  netspoofer.go provides a fake NetReceiver service for testing netsender
  clients.

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

// Package netspoofer provides a fake NetReceiver service. It answers config,
// poll and vars requests, records the pin values and logs it receives, and
// lets tests change device variables and queue service requests.
package netspoofer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// logPin is the pin that carries log text.
const logPin = "T0"

// Server is a fake NetReceiver service. It implements http.Handler and is
// intended to be wrapped by an httptest.Server.
type Server struct {
	mu     sync.Mutex
	config map[string]interface{}
	vars   map[string]string
	varSum int
	rc     []int
	pins   map[string][]int
	logs   strings.Builder
	ma     string
}

// New returns a Server that replies to config requests with config.
func New(config map[string]interface{}) *Server {
	return &Server{config: config, vars: make(map[string]string), pins: make(map[string][]int)}
}

// SetVars replaces the device variables and changes the var sum.
func (s *Server) SetVars(vars map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]string, len(vars))
	for k, v := range vars {
		s.vars[k] = v
	}
	s.varSum++
}

// Request queues a response code to be returned by the next poll.
func (s *Server) Request(rc int) {
	s.mu.Lock()
	s.rc = append(s.rc, rc)
	s.mu.Unlock()
}

// Pin returns the values received for the named pin, oldest first.
func (s *Server) Pin(name string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pins[name]...)
}

// Logs returns all log text received.
func (s *Server) Logs() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.String()
}

// MAC returns the MAC address of the last device to make a request.
func (s *Server) MAC() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ma
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("ma") == "" || q.Get("dk") == "" {
		writeError(w, "MissingDevice")
		return
	}
	s.mu.Lock()
	s.ma = q.Get("ma")
	s.mu.Unlock()

	switch r.URL.Path {
	case "/config":
		s.handleConfig(w)
	case "/poll":
		s.handlePoll(w, r)
	case "/vars":
		s.handleVars(w)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter) {
	s.mu.Lock()
	resp := map[string]interface{}{"rc": 0, "vs": s.varSum}
	for k, v := range s.config {
		resp[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, resp)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "ReadError")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, vals := range r.URL.Query() {
		if !isPin(name) {
			continue
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			writeError(w, "InvalidValue")
			return
		}
		if name == logPin {
			if n != len(body) {
				writeError(w, "InvalidPayloadSize")
				return
			}
			s.logs.Write(body)
		}
		s.pins[name] = append(s.pins[name], n)
	}

	rc := 0
	if len(s.rc) != 0 {
		rc, s.rc = s.rc[0], s.rc[1:]
	}
	writeJSON(w, map[string]interface{}{"rc": rc, "vs": s.varSum})
}

func (s *Server) handleVars(w http.ResponseWriter) {
	s.mu.Lock()
	resp := map[string]string{"id": s.ma, "vs": strconv.Itoa(s.varSum)}
	for k, v := range s.vars {
		resp[s.ma+"."+k] = v
	}
	s.mu.Unlock()
	writeJSON(w, resp)
}

// isPin reports whether a query key names a pin, such as X40 or T0.
func isPin(key string) bool {
	if len(key) < 2 || !unicode.IsUpper(rune(key[0])) {
		return false
	}
	for _, c := range key[1:] {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, "MarshalingError")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// writeError writes a JSON response containing a NetReceiver error code.
func writeError(w http.ResponseWriter, er string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"er":%q}`, er)
}
