// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"crypto/tls"
	"io/ioutil"
	"log"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// TLSListenConfig defines configuration options for listening on TLS
type TLSListenConfig struct {
	Cert string
	Key  string
}

// Config returns the TLS certificate associated with this TLSListenConfig
func (conf *TLSListenConfig) Config() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(conf.Cert, conf.Key)
	if err != nil {
		return nil, errors.New("tls cert+key: invalid pair")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
	}, err
}

// UpstreamAddress is one address the relay may dial for its outbound leg.
type UpstreamAddress struct {
	Address   string
	UseTLS    bool `yaml:"tls"`
	VerifyTLS bool `yaml:"verify-tls"`
}

// Config defines a configuration file for jsonrelay
type Config struct {
	Relay struct {
		Listeners    []string
		TLSListeners map[string]*TLSListenConfig `yaml:"tls-listeners"`
		Upstreams    []UpstreamAddress
		EagerJSON    bool              `yaml:"eager-json"`
		MaxSendQ     string            `yaml:"max-sendq"`
		Logging      map[string]string `yaml:"logging"`
	}
}

// TLSListeners returns a map of tls.Config objects from our config
func (conf *Config) TLSListeners() map[string]*tls.Config {
	tlsListeners := make(map[string]*tls.Config)
	for s, tlsListenersConf := range conf.Relay.TLSListeners {
		config, err := tlsListenersConf.Config()
		if err != nil {
			log.Fatal(err)
		}
		tlsListeners[s] = config
	}
	return tlsListeners
}

// MaxSendQBytes returns the send queue cap in bytes, zero meaning no cap.
func (conf *Config) MaxSendQBytes() (uint64, error) {
	if conf.Relay.MaxSendQ == "" {
		return 0, nil
	}
	max, err := bytefmt.ToBytes(conf.Relay.MaxSendQ)
	if err != nil {
		return 0, errors.Wrap(err, "max-sendq")
	}
	return max, nil
}

// LogRaw reports whether raw per-direction traffic should be logged.
func (conf *Config) LogRaw() bool {
	return conf.Relay.Logging["raw"] == "true"
}

// LoadConfig returns a Config instance
func LoadConfig(filename string) (config *Config, err error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	if len(config.Relay.Listeners) == 0 {
		return nil, errors.New("No listeners are defined")
	}
	if len(config.Relay.Upstreams) == 0 {
		return nil, errors.New("No upstream addresses are defined")
	}
	if _, err := config.MaxSendQBytes(); err != nil {
		return nil, err
	}
	return config, nil
}
