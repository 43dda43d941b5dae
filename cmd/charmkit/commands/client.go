// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/socket"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// socketEnv is how hook scripts find the daemon: the daemon exports
// it into every script environment.
const socketEnv = "CHARMKIT_SOCKET"

// connection carries the daemon socket flag shared by every command
// that talks to the daemon.
type connection struct {
	socketPath string
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", "", "daemon socket path (default $CHARMKIT_SOCKET)")
}

func (c *connection) client() (*socket.Client, error) {
	path := c.socketPath
	if path == "" {
		path = os.Getenv(socketEnv)
	}
	if path == "" {
		return nil, fmt.Errorf("no daemon socket: set --socket or %s", socketEnv)
	}
	return socket.NewClient(path), nil
}

// call sends one buffered request with the hook environment attached.
func (c *connection) call(request *wire.Request, result any) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	request.Env = hookEnv()
	return client.Call(context.Background(), request, result)
}

// callStream sends one streaming request with the hook environment
// attached.
func (c *connection) callStream(request *wire.Request, onFrame func(data codec.RawMessage) error, result any) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	request.Env = hookEnv()
	return client.CallStream(context.Background(), request, onFrame, result)
}

// hookEnv collects the controller-minted invocation context from the
// process environment. The daemon forwards these to hook tools, which
// cannot resolve the current relation or unit without them.
func hookEnv() map[string]string {
	env := make(map[string]string)
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, "JUJU_") {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if found {
			env[key] = value
		}
	}
	return env
}

// parseAssignments turns positional "key=value" arguments into a
// batch update. A trailing "-" instead of "=value" erases the key:
// "proxy-url=http://…" sets, "proxy-url-" erases.
func parseAssignments(args []string) (map[string]*string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one key=value (or key-) argument is required")
	}
	values := make(map[string]*string, len(args))
	for _, arg := range args {
		if key, found := strings.CutSuffix(arg, "-"); found && !strings.Contains(arg, "=") {
			if key == "" {
				return nil, fmt.Errorf("invalid argument %q", arg)
			}
			values[key] = nil
			continue
		}
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value or key-", arg)
		}
		values[key] = &value
	}
	return values, nil
}

// parseStringAssignments is parseAssignments without erase support,
// for controller data that has no null state.
func parseStringAssignments(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one key=value argument is required")
	}
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", arg)
		}
		values[key] = value
	}
	return values, nil
}

// parsePortBinding parses "HOST:CONTAINER/PROTOCOL", for example
// "8080:80/tcp".
func parsePortBinding(arg string) (wire.PortBinding, error) {
	ports, protocol, found := strings.Cut(arg, "/")
	if !found {
		return wire.PortBinding{}, fmt.Errorf("invalid port %q: expected HOST:CONTAINER/PROTOCOL", arg)
	}
	hostPart, containerPart, found := strings.Cut(ports, ":")
	if !found {
		return wire.PortBinding{}, fmt.Errorf("invalid port %q: expected HOST:CONTAINER/PROTOCOL", arg)
	}
	hostPort, err := parsePort(hostPart)
	if err != nil {
		return wire.PortBinding{}, fmt.Errorf("invalid host port in %q: %w", arg, err)
	}
	containerPort, err := parsePort(containerPart)
	if err != nil {
		return wire.PortBinding{}, fmt.Errorf("invalid container port in %q: %w", arg, err)
	}
	return wire.PortBinding{
		HostPort:      hostPort,
		ContainerPort: containerPort,
		Protocol:      protocol,
	}, nil
}

func parsePort(s string) (uint16, error) {
	value, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a port number", s)
	}
	return uint16(value), nil
}
