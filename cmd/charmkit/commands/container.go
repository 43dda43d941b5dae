// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/charmkit-project/charmkit/cmd/charmkit/cli"
	"github.com/charmkit-project/charmkit/lib/codec"
	"github.com/charmkit-project/charmkit/lib/wire"
)

// ContainerCommand returns the "container" command group. Every
// mutation stages the change; nothing touches the runtime until
// "container apply".
func ContainerCommand() *cli.Command {
	conn := &connection{}
	var containerName string
	var noPull bool
	var deleteData bool

	flags := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("container", pflag.ContinueOnError)
		conn.addFlags(flagSet)
		flagSet.StringVarP(&containerName, "container", "c", "", "container name (default container if empty)")
		return flagSet
	}

	request := func(method string) *wire.Request {
		return &wire.Request{Method: method, Container: containerName}
	}

	imageSet := &cli.Command{
		Name:    "set-image",
		Summary: "Stage the container image",
		Usage:   "charmkit container set-image [--no-pull] <image>",
		Flags: func() *pflag.FlagSet {
			flagSet := flags()
			flagSet.BoolVar(&noPull, "no-pull", false, "use the locally cached image, skip the registry pull")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one image argument")
			}
			req := request(wire.MethodContainerImageSet)
			req.Image = args[0]
			req.NoPull = noPull
			return conn.call(req, nil)
		},
	}

	imageGet := &cli.Command{
		Name:    "get-image",
		Summary: "Print the staged container image",
		Usage:   "charmkit container get-image",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.StringResult
			if err := conn.call(request(wire.MethodContainerImageGet), &result); err != nil {
				return err
			}
			fmt.Println(result.Value)
			return nil
		},
	}

	envGet := &cli.Command{
		Name:    "env-get",
		Summary: "Print one staged environment variable",
		Usage:   "charmkit container env-get <key>",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one key argument")
			}
			req := request(wire.MethodContainerEnvGet)
			req.Key = args[0]
			var result wire.ValueResult
			if err := conn.call(req, &result); err != nil {
				return err
			}
			if result.Value == nil {
				return &cli.ExitError{Code: 1}
			}
			fmt.Println(*result.Value)
			return nil
		},
	}

	envGetAll := &cli.Command{
		Name:    "env-get-all",
		Summary: "Print every staged environment variable",
		Usage:   "charmkit container env-get-all",
		Flags:   flags,
		Run: func(args []string) error {
			return conn.callStream(request(wire.MethodContainerEnvGetAll),
				func(data codec.RawMessage) error {
					var pair wire.Pair
					if err := codec.Unmarshal(data, &pair); err != nil {
						return err
					}
					fmt.Printf("%s=%s\n", pair.Key, pair.Value)
					return nil
				}, nil)
		},
	}

	envSet := &cli.Command{
		Name:    "env-set",
		Summary: "Stage environment variables atomically",
		Usage:   "charmkit container env-set <key=value|key-> ...",
		Flags:   flags,
		Run: func(args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}
			req := request(wire.MethodContainerEnvSet)
			req.Values = values
			return conn.call(req, nil)
		},
	}

	setEntrypoint := &cli.Command{
		Name:    "set-entrypoint",
		Summary: "Stage the container entrypoint",
		Usage:   "charmkit container set-entrypoint [arg ...]",
		Flags:   flags,
		Run: func(args []string) error {
			req := request(wire.MethodContainerSetEntrypoint)
			req.Entrypoint = args
			return conn.call(req, nil)
		},
	}

	setCommand := &cli.Command{
		Name:    "set-command",
		Summary: "Stage the container command",
		Usage:   "charmkit container set-command [arg ...]",
		Flags:   flags,
		Run: func(args []string) error {
			req := request(wire.MethodContainerSetCommand)
			req.Command = args
			return conn.call(req, nil)
		},
	}

	setNetwork := &cli.Command{
		Name:    "set-network",
		Summary: "Stage the container network",
		Usage:   "charmkit container set-network [network]",
		Flags:   flags,
		Run: func(args []string) error {
			req := request(wire.MethodContainerNetworkSet)
			if len(args) > 1 {
				return fmt.Errorf("expected at most one network argument")
			}
			if len(args) == 1 {
				req.Network = args[0]
			}
			return conn.call(req, nil)
		},
	}

	volumeAdd := &cli.Command{
		Name:    "volume-add",
		Summary: "Stage a volume mount",
		Usage:   "charmkit container volume-add <source> <target>",
		Description: `Stages a volume mount. An absolute source binds a host path; a
relative source names a managed directory under the unit's volume
data directory, created on apply.`,
		Flags: flags,
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected source and target arguments")
			}
			req := request(wire.MethodContainerVolumeAdd)
			req.Source = args[0]
			req.Target = args[1]
			return conn.call(req, nil)
		},
	}

	volumeRemove := &cli.Command{
		Name:    "volume-remove",
		Summary: "Remove a staged volume mount",
		Usage:   "charmkit container volume-remove [--delete-data] <target>",
		Description: `Removes the volume mounted at the given target path.

With --delete-data, the managed volume data is also deleted, provided
no other mount across any container still references the same source.
Absolute host paths are never deleted. Prints "deleted" or "retained"
to report what happened to the data.`,
		Flags: func() *pflag.FlagSet {
			flagSet := flags()
			flagSet.BoolVar(&deleteData, "delete-data", false, "delete the managed volume data if unreferenced")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one target argument")
			}
			req := request(wire.MethodContainerVolumeRemove)
			req.Target = args[0]
			req.DeleteData = deleteData
			var result wire.VolumeRemoveResult
			if err := conn.call(req, &result); err != nil {
				return err
			}
			if deleteData {
				if result.DataDeleted {
					fmt.Println("deleted")
				} else {
					fmt.Println("retained")
				}
			}
			return nil
		},
	}

	volumeList := &cli.Command{
		Name:    "volume-list",
		Summary: "Print staged volume mounts",
		Usage:   "charmkit container volume-list",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.VolumesResult
			if err := conn.call(request(wire.MethodContainerVolumeGetAll), &result); err != nil {
				return err
			}
			for _, volume := range result.Volumes {
				fmt.Printf("%s:%s\n", volume.Source, volume.Target)
			}
			return nil
		},
	}

	portAdd := &cli.Command{
		Name:    "port-add",
		Summary: "Stage a published port",
		Usage:   "charmkit container port-add <host:container/protocol>",
		Examples: []cli.Example{
			{Description: "Publish container port 80 on host port 8080", Command: "charmkit container port-add 8080:80/tcp"},
		},
		Flags: flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one port argument")
			}
			binding, err := parsePortBinding(args[0])
			if err != nil {
				return err
			}
			req := request(wire.MethodContainerPortAdd)
			req.HostPort = binding.HostPort
			req.ContainerPort = binding.ContainerPort
			req.Protocol = binding.Protocol
			return conn.call(req, nil)
		},
	}

	portRemove := &cli.Command{
		Name:    "port-remove",
		Summary: "Remove a staged published port",
		Usage:   "charmkit container port-remove <host/protocol>",
		Flags:   flags,
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one port argument")
			}
			hostPart, protocol, found := strings.Cut(args[0], "/")
			if !found {
				return fmt.Errorf("invalid port %q: expected HOST/PROTOCOL", args[0])
			}
			hostPort, err := parsePort(hostPart)
			if err != nil {
				return err
			}
			req := request(wire.MethodContainerPortRemove)
			req.HostPort = hostPort
			req.Protocol = protocol
			return conn.call(req, nil)
		},
	}

	portRemoveAll := &cli.Command{
		Name:    "port-remove-all",
		Summary: "Remove every staged published port",
		Usage:   "charmkit container port-remove-all",
		Flags:   flags,
		Run: func(args []string) error {
			return conn.call(request(wire.MethodContainerPortRemoveAll), nil)
		},
	}

	portList := &cli.Command{
		Name:    "port-list",
		Summary: "Print staged published ports",
		Usage:   "charmkit container port-list",
		Flags:   flags,
		Run: func(args []string) error {
			var result wire.PortsResult
			if err := conn.call(request(wire.MethodContainerPortGetAll), &result); err != nil {
				return err
			}
			for _, port := range result.Ports {
				fmt.Printf("%d:%d/%s\n", port.HostPort, port.ContainerPort, port.Protocol)
			}
			return nil
		},
	}

	apply := &cli.Command{
		Name:    "apply",
		Summary: "Drive the runtime to match every staged spec",
		Usage:   "charmkit container apply",
		Description: `Reconciles every container against its staged spec: changed
containers are recreated, unchanged ones are left alone. A failure on
one container does not block the others; the failed container retries
on the next apply.`,
		Flags: flags,
		Run: func(args []string) error {
			return conn.call(&wire.Request{Method: wire.MethodContainerApply}, nil)
		},
	}

	deleteCommand := &cli.Command{
		Name:    "delete",
		Summary: "Remove a container and its staged spec",
		Usage:   "charmkit container delete",
		Flags:   flags,
		Run: func(args []string) error {
			return conn.call(request(wire.MethodContainerDelete), nil)
		},
	}

	return &cli.Command{
		Name:    "container",
		Summary: "Stage and apply container configuration",
		Subcommands: []*cli.Command{
			imageSet, imageGet,
			envGet, envGetAll, envSet,
			setEntrypoint, setCommand, setNetwork,
			volumeAdd, volumeRemove, volumeList,
			portAdd, portRemove, portRemoveAll, portList,
			apply, deleteCommand,
		},
	}
}
