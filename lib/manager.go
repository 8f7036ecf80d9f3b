// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package jsonrelay

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// QuitSignals is the list of signals we quit on
	QuitSignals = []os.Signal{syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT}
)

// Manager handles the different components that keep jsonrelay spinning.
type Manager struct {
	Config *Config
	Bus    HookEmitter

	Listeners []net.Listener

	newConns    chan net.Conn
	quitSignals chan os.Signal

	maxSendQBytes uint64
}

// NewManager creates a new relay manager from the given config.
func NewManager(config *Config) *Manager {
	var m Manager
	m.Config = config
	m.Bus = MakeHookEmitter()

	m.newConns = make(chan net.Conn)
	m.quitSignals = make(chan os.Signal, len(QuitSignals))

	m.maxSendQBytes, _ = config.MaxSendQBytes()

	if config.LogRaw() {
		m.Bus.Register(HookRawInName, logRawHook("<- "))
		m.Bus.Register(HookRawOutName, logRawHook("-> "))
	}

	return &m
}

func logRawHook(direction string) func(interface{}) {
	return func(data interface{}) {
		raw, ok := data.(*HookRawBytes)
		if !ok {
			return
		}
		log.Printf("%s %s%q", raw.Leg, direction, raw.Data)
	}
}

// Run starts the relay, opening the listeners and waiting for connections.
func (m *Manager) Run() error {
	for _, address := range m.Config.Relay.Listeners {
		config, listenTLS := m.Config.Relay.TLSListeners[address]

		listener, err := net.Listen("tcp", address)
		if err != nil {
			log.Fatal(address, "listen error: ", err)
		}

		tlsString := "plaintext"
		if listenTLS {
			tlsConfig, err := config.Config()
			if err != nil {
				log.Fatal(address, "tls listen error: ", err)
			}
			listener = tls.NewListener(listener, tlsConfig)
			tlsString = "TLS"
		}
		fmt.Println(fmt.Sprintf("listening on %s using %s.", address, tlsString))

		go func(listener net.Listener, address string) {
			for {
				conn, err := listener.Accept()
				if err != nil {
					return
				}
				fmt.Println(fmt.Sprintf("%s accept: %s", address, conn.RemoteAddr()))

				m.newConns <- conn
			}
		}(listener, address)

		m.Listeners = append(m.Listeners, listener)
	}

	signal.Notify(m.quitSignals, QuitSignals...)

	for {
		select {
		case <-m.quitSignals:
			fmt.Println("shutting down.")
			for _, listener := range m.Listeners {
				listener.Close()
			}
			return nil
		case conn := <-m.newConns:
			go m.relayConnection(conn)
		}
	}
}

// relayConnection dials the upstream leg for a freshly accepted client
// connection and runs the pair until either side goes away.
func (m *Manager) relayConnection(clientConn net.Conn) {
	serverConn, err := m.DialUpstream()
	if err != nil {
		log.Println("could not dial upstream:", err.Error())
		clientConn.Close()
		return
	}

	downstream := NewConnectionChannel("client", NewSocket(clientConn, m.maxSendQBytes))

	var upstream *ConnectionChannel
	if m.Config.Relay.EagerJSON {
		upstream, err = NewEagerConnectionChannel("server", NewSocket(serverConn, m.maxSendQBytes))
		if err != nil {
			log.Println("could not announce JSON upstream:", err.Error())
			clientConn.Close()
			serverConn.Close()
			return
		}
	} else {
		upstream = NewConnectionChannel("server", NewSocket(serverConn, m.maxSendQBytes))
	}

	pair := NewRelayPair(downstream, upstream, &m.Bus)
	pair.Run()
}

// DialUpstream tries each configured upstream address in order and returns
// the first connection that establishes.
func (m *Manager) DialUpstream() (net.Conn, error) {
	var lastErr error
	for _, address := range m.Config.Relay.Upstreams {
		var conn net.Conn
		var err error
		if address.UseTLS {
			tlsConfig := &tls.Config{}
			if !address.VerifyTLS {
				tlsConfig.InsecureSkipVerify = true
			}
			conn, err = tls.Dial("tcp", address.Address, tlsConfig)
		} else {
			conn, err = net.Dial("tcp", address.Address)
		}
		if err == nil {
			return conn, nil
		}
		lastErr = errors.Wrap(err, address.Address)
	}
	return nil, lastErr
}
