// Package docker runs the local Neo4j and GraphDB containers.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"d3fend-graphx/internal/config"
)

const (
	Neo4jContainer   = "d3fend-graphx-neo4j"
	GraphDBContainer = "d3fend-graphx-graphdb"

	Neo4jDataDir   = "neo4j-data"
	GraphDBDataDir = "graphdb-data"
)

// ErrContainerNotFound is returned when stopping a container that does not exist.
var ErrContainerNotFound = errors.New("container not found")

// API is the subset of the Docker client used here.
type API interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig,
		netCfg *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, id string, options container.StartOptions) error
	ContainerStop(ctx context.Context, id string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error
}

// Service describes one container.
type Service struct {
	Name      string
	Image     string
	Ports     []string
	Env       []string
	// DataDir is mounted at MountPath.
	DataDir   string
	MountPath string
}

// Services returns the containers for cfg, rooted at dir.
func Services(cfg *config.Config, dir string) []Service {
	return []Service{
		{
			Name:      Neo4jContainer,
			Image:     cfg.Neo4j.DockerImage,
			Ports:     []string{"7474", "7687"},
			Env:       []string{fmt.Sprintf("NEO4J_AUTH=%s/%s", cfg.Neo4j.User, cfg.Neo4j.Password)},
			DataDir:   filepath.Join(dir, Neo4jDataDir),
			MountPath: "/data",
		},
		{
			Name:      GraphDBContainer,
			Image:     cfg.GraphDB.DockerImage,
			Ports:     []string{"7200"},
			DataDir:   filepath.Join(dir, GraphDBDataDir),
			MountPath: "/opt/graphdb/home",
		},
	}
}

// Select filters services by name; "neo4j" and "graphdb" pick one, "" or "all"
// keeps both.
func Select(services []Service, which string) ([]Service, error) {
	switch which {
	case "", "all":
		return services, nil
	case "neo4j":
		return byName(services, Neo4jContainer), nil
	case "graphdb":
		return byName(services, GraphDBContainer), nil
	}
	return nil, fmt.Errorf("unknown service %q (want neo4j, graphdb or all)", which)
}

func byName(services []Service, name string) []Service {
	for _, s := range services {
		if s.Name == name {
			return []Service{s}
		}
	}
	return nil
}

// containerConfig builds the create request for s.
func containerConfig(s Service) (*container.Config, *container.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range s.Ports {
		port, err := nat.NewPort("tcp", p)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port %q: %w", p, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: p}}
	}

	hostCfg := &container.HostConfig{
		PortBindings:  bindings,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if s.DataDir != "" {
		abs, err := filepath.Abs(s.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve %s: %w", s.DataDir, err)
		}
		hostCfg.Binds = []string{abs + ":" + s.MountPath}
	}

	return &container.Config{
		Image:        s.Image,
		Env:          s.Env,
		ExposedPorts: exposed,
	}, hostCfg, nil
}

// NewClient connects to the local Docker daemon.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// find returns the id and state of the named container, or "" when absent.
func find(ctx context.Context, api API, name string) (string, string, error) {
	containers, err := api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	for _, c := range containers {
		for _, n := range c.Names {
			if n == "/"+name {
				return c.ID, string(c.State), nil
			}
		}
	}
	return "", "", nil
}

// Start pulls, creates and starts each service. Running containers are left
// alone and stopped ones are restarted.
func Start(ctx context.Context, api API, services []Service, out io.Writer) error {
	for _, s := range services {
		if err := start(ctx, api, s, out); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

func start(ctx context.Context, api API, s Service, out io.Writer) error {
	id, state, err := find(ctx, api, s.Name)
	if err != nil {
		return err
	}
	if id != "" {
		if state == "running" {
			fmt.Fprintf(out, "✓ Container %s is already running\n", s.Name)
			return nil
		}
		fmt.Fprintf(out, "Starting existing container %s...\n", s.Name)
		if err := api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		fmt.Fprintf(out, "✓ Container %s started\n", s.Name)
		return nil
	}

	if s.DataDir != "" {
		if err := os.MkdirAll(s.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.DataDir, err)
		}
	}

	fmt.Fprintf(out, "Pulling image %s...\n", s.Image)
	rc, err := api.ImagePull(ctx, s.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	// The pull only completes once the progress stream is drained.
	_, err = io.Copy(io.Discard, rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}

	cfg, hostCfg, err := containerConfig(s)
	if err != nil {
		return err
	}
	resp, err := api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, s.Name)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	fmt.Fprintf(out, "✓ Container %s started (ports %v)\n", s.Name, s.Ports)
	return nil
}

// Stop stops and removes each named container. Data directories are kept.
func Stop(ctx context.Context, api API, names []string, out io.Writer) error {
	var errs []error
	for _, name := range names {
		id, _, err := find(ctx, api, name)
		if err != nil {
			return err
		}
		if id == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrContainerNotFound, name))
			continue
		}

		fmt.Fprintf(out, "Stopping container %s...\n", name)
		timeout := 10
		if err := api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
			fmt.Fprintf(out, "Warning: failed to stop container: %v\n", err)
		}
		if err := api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove container %s: %w", name, err))
			continue
		}
		fmt.Fprintf(out, "✓ Container %s removed\n", name)
	}
	return errors.Join(errs...)
}
