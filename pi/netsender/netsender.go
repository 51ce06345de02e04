/*
DESCRIPTION
  netsender.go provides the client for the NetReceiver cloud service. The
  camera uses it to fetch its configuration and tuning variables, and to
  report status pins and logs.

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

// Package netsender implements a client for the NetReceiver cloud service.
// A device identifies itself with a MAC address and device key, polls the
// service with its input pin values and fetches its variables whenever the
// service reports that their checksum (the var sum) has changed.
package netsender

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/filemap"
	"github.com/ausocean/utils/sliceutils"
)

// Service request types.
const (
	RequestConfig = iota
	RequestPoll
	RequestVars
)

// Service response codes.
const (
	ResponseNone = iota - 1
	ResponseOK
	ResponseUpdate
	ResponseReboot
)

// Logger is the logging interface used by Sender. It is satisfied by
// the ausocean/utils logging.Logger.
type Logger interface {
	SetLevel(int8)
	Log(level int8, message string, params ...interface{})
}

// Log levels, matching those of ausocean/utils/logging.
const (
	DebugLevel   int8 = -1
	InfoLevel    int8 = 0
	WarningLevel int8 = 1
	ErrorLevel   int8 = 2
	FatalLevel   int8 = 5
)

const (
	version           = 1
	defaultService    = "data.cloudblue.org"
	defaultConfigFile = "/etc/netsender.conf"
	defaultMonPeriod  = 60 // Seconds.
	defaultTimeout    = 20 * time.Second
)

// Config params, written to the config file in this order.
//
//	ma: MAC address
//	dk: device key
//	ip: input pins
//	mp: monitor period in seconds
//	ct: client type
//	sh: service host
var (
	configParams  = []string{"ma", "dk", "ip", "mp", "ct", "sh"}
	configNumbers = []string{"dk", "mp"}
	requestPaths  = []string{"/config", "/poll", "/vars"}
)

var errNoKey = errors.New("key not found in JSON")

// ServerError is an error code returned by the service.
type ServerError struct {
	er string
}

func (e *ServerError) Error() string { return "service error: " + e.er }

// PinReader fills in the value of an input pin before it is sent.
type PinReader func(pin *Pin) error

// Sender is a NetReceiver client. It is safe for concurrent use.
type Sender struct {
	logger     Logger
	read       PinReader
	client     *http.Client
	configFile string
	configPins []Pin // Sent with config requests.

	mu     sync.Mutex
	config map[string]string
	varSum int
}

// New returns a Sender that reads its device identity from the config file.
// read is called for each configured input pin on every Run, and may be nil.
func New(logger Logger, read PinReader, options ...Option) (*Sender, error) {
	s := &Sender{
		logger:     logger,
		read:       read,
		client:     &http.Client{Timeout: defaultTimeout},
		configFile: defaultConfigFile,
	}
	for i, o := range options {
		if o == nil {
			return nil, errors.New("cannot apply nil option")
		}
		err := o(s)
		if err != nil {
			return nil, fmt.Errorf("could not apply option no. %d: %w", i, err)
		}
	}

	config, err := s.readConfig()
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	s.config = config

	var params []interface{}
	for _, name := range configParams {
		params = append(params, name, config[name])
	}
	s.logger.Log(InfoLevel, "config params", params...)
	return s, nil
}

// Run polls the service with the current input pin values, or sends a config
// request if there are no input pins. If the service asks for an update the
// config is refreshed. Clients call Run regularly and check VarSum for
// variable changes.
func (s *Sender) Run() error {
	s.logger.Log(DebugLevel, "running")

	ip := s.Param("ip")
	if ip == "" {
		_, err := s.Config()
		return err
	}

	inputs := MakePins(ip, "")
	if s.read != nil {
		for i := range inputs {
			err := s.read(&inputs[i])
			if err != nil {
				s.logger.Log(WarningLevel, "error reading pin", "pin", inputs[i].Name, "error", err.Error())
			}
		}
	}

	_, rc, err := s.Send(RequestPoll, inputs)
	if err != nil {
		return err
	}

	switch rc {
	case ResponseOK, ResponseNone:
	case ResponseUpdate:
		s.logger.Log(InfoLevel, "received update request")
		_, err = s.Config()
		return err
	default:
		s.logger.Log(WarningLevel, "ignoring unsupported service request", "rc", rc)
	}
	return nil
}

// Send makes a request of the given type with pins, returning the JSON reply
// and the service response code. Pins with a value of -1 are not sent. Pins
// with a MIME type have their data sent in the body of a POST request, other
// pins carrying data send it as the query value.
func (s *Sender) Send(requestType int, pins []Pin) (reply string, rc int, err error) {
	rc = ResponseNone
	if requestType < 0 || requestType >= len(requestPaths) {
		return "", rc, fmt.Errorf("invalid request type: %d", requestType)
	}

	q := url.Values{}
	q.Set("vn", strconv.Itoa(version))
	q.Set("ma", s.Param("ma"))
	q.Set("dk", s.Param("dk"))
	var body bytes.Buffer
	var mime string
	for _, pin := range pins {
		if pin.Value == -1 {
			continue
		}
		if pin.MimeType == "" {
			v := strconv.Itoa(pin.Value)
			if len(pin.Data) != 0 {
				v = string(pin.Data)
			}
			q.Set(pin.Name, v)
			continue
		}
		if len(pin.Data) != pin.Value {
			return "", rc, fmt.Errorf("pin %s data length %d does not match value %d", pin.Name, len(pin.Data), pin.Value)
		}
		q.Set(pin.Name, strconv.Itoa(pin.Value))
		body.Write(pin.Data)
		mime = pin.MimeType
	}

	u := "http://" + s.host() + requestPaths[requestType] + "?" + q.Encode()
	s.logger.Log(DebugLevel, "http request", "url", u)
	reply, err = s.httpRequest(u, &body, mime)
	if err != nil {
		s.logger.Log(WarningLevel, "http error", "error", err.Error())
		return "", rc, err
	}
	s.logger.Log(DebugLevel, "http reply", "reply", reply)

	dec, err := NewJSONDecoder(reply)
	if err != nil {
		return reply, rc, fmt.Errorf("could not decode reply %q: %w", reply, err)
	}
	if er, err := dec.String("er"); err == nil {
		s.logger.Log(WarningLevel, "error in response", "er", er)
		return reply, rc, &ServerError{er: er}
	}
	rc, err = dec.Int("rc")
	if err != nil {
		rc = ResponseOK
	}

	// The var sum is a string in vars replies and an optional integer
	// otherwise.
	var vs int
	if requestType == RequestVars {
		str, err := dec.String("vs")
		if err != nil {
			return reply, rc, fmt.Errorf("vs missing: %w", err)
		}
		vs, err = strconv.Atoi(str)
		if err != nil {
			return reply, rc, fmt.Errorf("vs not an integer: %w", err)
		}
	} else {
		vs, err = dec.Int("vs")
		if errors.Is(err, errNoKey) {
			return reply, rc, nil
		}
		if err != nil {
			return reply, rc, fmt.Errorf("invalid vs: %w", err)
		}
	}

	s.mu.Lock()
	if vs != s.varSum {
		s.logger.Log(DebugLevel, "varsum changed", "vs", vs)
	}
	s.varSum = vs
	s.mu.Unlock()
	return reply, rc, nil
}

// httpRequest sends a GET request to u, or a POST if body is not empty, and
// returns the last line of the response.
func (s *Sender) httpRequest(u string, body *bytes.Buffer, mime string) (string, error) {
	method := http.MethodGet
	var r io.Reader
	if body.Len() != 0 {
		method = http.MethodPost
		r = body
	}
	req, err := http.NewRequest(method, u, r)
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", mime)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %s", resp.Status)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	return lines[len(lines)-1], nil
}

// Config requests the device configuration from the service. Params that
// have changed are saved to the config file. Missing or invalid params are
// ignored.
func (s *Sender) Config() (rc int, err error) {
	reply, rc, err := s.Send(RequestConfig, s.configPins)
	if err != nil {
		return rc, err
	}
	s.logger.Log(InfoLevel, "received config", "config", reply)

	dec, err := NewJSONDecoder(reply)
	if err != nil {
		return rc, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, name := range configParams {
		var val string
		if sliceutils.ContainsString(configNumbers, name) {
			n, err := dec.Int(name)
			if err != nil {
				continue
			}
			val = strconv.Itoa(n)
		} else {
			val, err = dec.String(name)
			if err != nil {
				continue
			}
		}
		if val != s.config[name] {
			s.config[name] = val
			s.logger.Log(InfoLevel, "config param changed", "name", name, "value", val)
			changed = true
		}
	}

	if changed {
		err := filemap.WriteTo(s.configFile, "\n", " ", s.config, configParams)
		if err != nil {
			s.logger.Log(ErrorLevel, "error writing config", "error", err.Error())
		} else {
			s.logger.Log(DebugLevel, "wrote config")
		}
	}
	return rc, nil
}

// Param returns a config param.
func (s *Sender) Param(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config[name]
}

// VarSum returns the last var sum received from the service.
func (s *Sender) VarSum() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.varSum
}

// Vars requests the device variables from the service. Variables are
// returned without their device ID prefix. The special variable "logging",
// one of Debug, Info, Warning, Error or Fatal, sets the log level.
func (s *Sender) Vars() (map[string]string, error) {
	reply, _, err := s.Send(RequestVars, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Log(InfoLevel, "received vars", "vars", reply)

	var vars map[string]string
	err = json.Unmarshal([]byte(reply), &vars)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal vars: %w", err)
	}

	if id, ok := vars["id"]; ok {
		for k, v := range vars {
			if strings.HasPrefix(k, id+".") {
				delete(vars, k)
				vars[strings.TrimPrefix(k, id+".")] = v
			}
		}
	}
	if _, ok := vars["mode"]; !ok {
		vars["mode"] = "Normal"
	}

	if lvl, ok := vars["logging"]; ok {
		levels := map[string]int8{
			"Debug":   DebugLevel,
			"Info":    InfoLevel,
			"Warning": WarningLevel,
			"Error":   ErrorLevel,
			"Fatal":   FatalLevel,
		}
		l, ok := levels[lvl]
		if !ok {
			s.logger.Log(WarningLevel, "unsupported log level", "logging", lvl)
			return vars, nil
		}
		s.logger.SetLevel(l)
		s.logger.Log(DebugLevel, "set log level", "logging", lvl)
	}
	return vars, nil
}

// host returns the service host.
func (s *Sender) host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config["sh"]
}

// readConfig reads the config file. The ma and dk params are required, the
// others take defaults.
func (s *Sender) readConfig() (map[string]string, error) {
	config, err := filemap.ReadFrom(s.configFile, "\n", " ")
	if err != nil {
		return nil, err
	}

	for _, name := range configParams {
		val, ok := config[name]
		if !ok {
			switch name {
			case "ma", "dk":
				return nil, fmt.Errorf("required %s param is missing", name)
			case "mp":
				config[name] = strconv.Itoa(defaultMonPeriod)
			case "sh":
				config[name] = defaultService
			default:
				config[name] = ""
			}
			continue
		}
		if sliceutils.ContainsString(configNumbers, name) {
			_, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected int for config param %s: %w", name, err)
			}
		}
	}
	return config, nil
}

// Pin holds a named value sent to the service. X pins carry scalars and T
// pins carry text, in which case Data holds the text, Value its length and
// MimeType its type.
type Pin struct {
	Name     string
	Value    int
	Data     []byte
	MimeType string
}

// MakePins makes pins from a comma separated list of names, optionally
// restricted to the comma separated pin types in restrict. Values are -1.
func MakePins(csv, restrict string) []Pin {
	if csv == "" {
		return nil
	}
	var types []string
	if restrict != "" {
		types = strings.Split(restrict, ",")
	}
	var pins []Pin
	for _, name := range strings.Split(csv, ",") {
		if name == "" {
			continue
		}
		if restrict == "" || sliceutils.ContainsString(types, name[:1]) {
			pins = append(pins, Pin{Name: name, Value: -1})
		}
	}
	return pins
}

// JSONDecoder decodes fields of a flat JSON object.
type JSONDecoder struct {
	data map[string]interface{}
}

// NewJSONDecoder returns a JSONDecoder for the JSON object jsn.
func NewJSONDecoder(jsn string) (*JSONDecoder, error) {
	dec := &JSONDecoder{}
	err := json.Unmarshal([]byte(jsn), &dec.data)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// Int returns the integer value for key.
func (dec *JSONDecoder) Int(key string) (int, error) {
	v, ok := dec.data[key]
	if !ok || v == nil {
		return -1, errNoKey
	}
	n, ok := v.(float64)
	if !ok {
		return -1, fmt.Errorf("%s is not a number", key)
	}
	return int(n), nil
}

// String returns the string value for key.
func (dec *JSONDecoder) String(key string) (string, error) {
	v, ok := dec.data[key]
	if !ok || v == nil {
		return "", errNoKey
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", key)
	}
	return str, nil
}
