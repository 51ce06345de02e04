/*
DESCRIPTION
  options.go provides functional options for the netsender client.

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

package netsender

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

// Option is a functional option for New.
type Option func(*Sender) error

// WithVarTypes returns an Option that advertises the device's variables and
// their types to the service with each config request. Types are string,
// bool, int, uint, float or an enumeration written as enum:a,b,c.
func WithVarTypes(vt map[string]string) Option {
	return func(s *Sender) error {
		for key, val := range vt {
			switch val {
			case "string", "bool", "int", "uint", "float":
				continue
			}
			if strings.HasPrefix(val, "enum:") && len(strings.Split(val[len("enum:"):], ",")) > 1 {
				continue
			}
			return fmt.Errorf("invalid variable type: key %s has invalid value: %s", key, val)
		}

		b, err := json.Marshal(vt)
		if err != nil {
			return fmt.Errorf("could not marshal var type map: %w", err)
		}
		s.configPins = []Pin{{Name: "vt", Value: len(b), Data: b, MimeType: "application/json"}}
		if la := localAddr(); la != "" {
			s.configPins = append(s.configPins, Pin{Name: "la", Value: len(la), Data: []byte(la)})
		}
		return nil
	}
}

// WithConfigFile returns an Option that sets the config file path.
func WithConfigFile(f string) Option {
	return func(s *Sender) error {
		s.configFile = f
		return nil
	}
}

// WithTimeout returns an Option that sets the timeout of service requests.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) error {
		if d <= 0 {
			return fmt.Errorf("invalid timeout: %v", d)
		}
		s.client.Timeout = d
		return nil
	}
}

// localAddr returns the preferred local IP address, or an empty string if
// there is no route.
func localAddr() string {
	// Dialing UDP sends nothing.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ""
	}
	return host
}
