// Copyright 2026 The Charmkit Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/charmkit-project/charmkit/lib/wire"
)

// DockerRuntime drives containers through the Docker Engine API.
type DockerRuntime struct {
	cli *client.Client
}

var _ Runtime = (*DockerRuntime)(nil)

// NewDockerRuntime connects to the Docker daemon using the standard
// environment configuration (DOCKER_HOST and friends).
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

func (r *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("pinging docker: %w", err)
	}
	return nil
}

func (r *DockerRuntime) Pull(ctx context.Context, ref string) error {
	reader, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pulling image %s: %w", ref, err)
	}
	return nil
}

func (r *DockerRuntime) Create(ctx context.Context, runtimeName string, spec *Spec) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for key, value := range spec.Env {
		env = append(env, key+"="+value)
	}
	sort.Strings(env)

	mounts := make([]mount.Mount, 0, len(spec.Volumes))
	for _, volume := range spec.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: volume.Source,
			Target: volume.Target,
		})
	}

	exposed, bindings, err := portMaps(spec.Ports)
	if err != nil {
		return "", err
	}

	config := &container.Config{
		Image:        spec.Image,
		Entrypoint:   spec.Entrypoint,
		Cmd:          spec.Command,
		Env:          env,
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		Mounts:        mounts,
		PortBindings:  bindings,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	var networkConfig *network.NetworkingConfig
	if spec.Network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, runtimeName)
	if err != nil {
		return "", fmt.Errorf("creating container %s: %w", runtimeName, err)
	}
	return resp.ID, nil
}

func (r *DockerRuntime) Start(ctx context.Context, id string) error {
	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting container %s: %w", id, err)
	}
	return nil
}

func (r *DockerRuntime) Stop(ctx context.Context, id string) error {
	err := r.cli.ContainerStop(ctx, id, container.StopOptions{})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("stopping container %s: %w", id, err)
	}
	return nil
}

func (r *DockerRuntime) Remove(ctx context.Context, id string) error {
	err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("removing container %s: %w", id, err)
	}
	return nil
}

// portMaps converts spec port bindings to the engine API's exposed
// port set and host binding map.
func portMaps(ports []wire.PortBinding) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for _, binding := range ports {
		port, err := nat.NewPort(binding.Protocol, strconv.Itoa(int(binding.ContainerPort)))
		if err != nil {
			return nil, nil, fmt.Errorf("port %d/%s: %w", binding.ContainerPort, binding.Protocol, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostPort: strconv.Itoa(int(binding.HostPort)),
		})
	}
	return exposed, bindings, nil
}
