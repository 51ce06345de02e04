/*
DESCRIPTION
  sds.go provides system data sensors reporting the health of the camera's
  host computer on netsender pins.

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

// Package sds provides software defined sensors for system data such as CPU
// temperature, CPU usage and memory use.
package sds

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ausocean/skycam/pi/netsender"
)

// System pins.
const (
	PinTemperature = "X20" // CPU temperature in tenths of a degree Celsius.
	PinCPU         = "X21" // CPU usage in percent since the last read.
	PinMemory      = "X22" // Memory obtained from the OS in kB.
)

// Default sources.
const (
	defaultThermal = "/sys/class/thermal/thermal_zone0/temp"
	defaultStat    = "/proc/stat"
)

var (
	ErrUnimplemented  = errors.New("unimplemented pin")
	errParsingCPUStat = errors.New("could not parse CPU stats")
)

// System reads system data. CPU usage is measured over the interval between
// successive reads, so the first read of PinCPU reports usage since boot.
type System struct {
	thermal, stat string

	mu              sync.Mutex
	lastTotal, last uint64 // Total and idle jiffies at the last read.
}

// New returns a System reading the standard Linux sources.
func New() *System {
	return &System{thermal: defaultThermal, stat: defaultStat}
}

// Handles reports whether pin is a system pin.
func Handles(pin string) bool {
	return pin == PinTemperature || pin == PinCPU || pin == PinMemory
}

// ReadPin is a netsender.PinReader for the system pins. Pin values are left
// at -1 on error.
func (s *System) ReadPin(pin *netsender.Pin) error {
	pin.Value = -1
	switch pin.Name {
	case PinTemperature:
		t, err := s.temperature()
		if err != nil {
			return err
		}
		pin.Value = int(t*10 + 0.5)
	case PinCPU:
		u, err := s.cpuUsage()
		if err != nil {
			return err
		}
		pin.Value = int(u + 0.5)
	case PinMemory:
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		pin.Value = int(ms.Sys / 1024)
	default:
		return ErrUnimplemented
	}
	return nil
}

// temperature returns the CPU temperature in degrees Celsius.
func (s *System) temperature() (float64, error) {
	b, err := os.ReadFile(s.thermal)
	if err != nil {
		return 0, fmt.Errorf("could not read temperature: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("could not parse temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}

// cpuUsage returns the percentage of CPU time not spent idle since the last
// call.
func (s *System) cpuUsage() (float64, error) {
	total, idle, err := s.cpuTimes()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dt, di := total-s.lastTotal, idle-s.last
	s.lastTotal, s.last = total, idle
	if dt == 0 {
		return 0, nil
	}
	return 100 * (1 - float64(di)/float64(dt)), nil
}

// cpuTimes returns the total and idle (including I/O wait) jiffies of the
// aggregate cpu line of the stat file.
func (s *System) cpuTimes() (total, idle uint64, err error) {
	b, err := os.ReadFile(s.stat)
	if err != nil {
		return 0, 0, fmt.Errorf("could not read CPU stats: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		f := strings.Fields(line)
		if len(f) < 5 || f[0] != "cpu" {
			continue
		}
		for i, v := range f[1:] {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return 0, 0, errParsingCPUStat
			}
			total += n
			// Fields 4 and 5 are idle and iowait.
			if i == 3 || i == 4 {
				idle += n
			}
		}
		return total, idle, nil
	}
	return 0, 0, errParsingCPUStat
}
