// Package provision starts managed database containers through the Docker
// API so demo environments get a working data source without manual setup.
package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"phalanx/internal/config"
)

// ContainerSpec describes one container to start.
type ContainerSpec struct {
	Image    string
	Port     nat.Port
	HostPort int
	Env      []string
	Labels   map[string]string
}

// Runner starts containers. The production implementation talks to the
// Docker daemon; tests substitute a recording stub.
type Runner interface {
	Run(ctx context.Context, spec ContainerSpec) (string, error)
}

type dockerRunner struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewDockerRunner connects to the Docker daemon using the standard
// environment configuration (DOCKER_HOST et al).
func NewDockerRunner(logger *slog.Logger) (Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &dockerRunner{cli: cli, logger: logger}, nil
}

func (d *dockerRunner) Run(ctx context.Context, spec ContainerSpec) (string, error) {
	// Pull errors are ignored when the image is already present locally.
	if rc, err := d.cli.ImagePull(ctx, spec.Image, image.PullOptions{}); err == nil {
		io.Copy(io.Discard, rc)
		rc.Close()
	} else {
		d.logger.Warn("image pull failed, trying local image", "image", spec.Image, "error", err)
	}

	bindings := nat.PortMap{
		spec.Port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.HostPort)}},
	}
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: nat.PortSet{spec.Port: struct{}{}},
		Labels:       spec.Labels,
	}, &container.HostConfig{
		PortBindings: bindings,
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}
	return resp.ID, nil
}

// Provisioner provisions the supported database flavors.
type Provisioner struct {
	runner Runner
	cfg    config.ProvisionConfig
	logger *slog.Logger
}

// NewProvisioner creates a Provisioner using the given runner.
func NewProvisioner(runner Runner, cfg config.ProvisionConfig, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{runner: runner, cfg: cfg, logger: logger}
}

// MongoDB starts a MongoDB container with root credentials preset and the
// default port published. Returns the container id.
func (p *Provisioner) MongoDB(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StartTimeout)
	defer cancel()

	id, err := p.runner.Run(ctx, ContainerSpec{
		Image:    p.cfg.MongoImage,
		Port:     nat.Port("27017/tcp"),
		HostPort: 27017,
		Env: []string{
			"MONGO_INITDB_ROOT_USERNAME=admin",
			"MONGO_INITDB_ROOT_PASSWORD=password",
		},
		Labels: map[string]string{"phalanx.provisioned": "mongodb"},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("mongodb container started", "container_id", id, "image", p.cfg.MongoImage)
	return id, nil
}

// PostgreSQL starts a PostgreSQL container with superuser credentials preset
// and the default port published. Returns the container id.
func (p *Provisioner) PostgreSQL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StartTimeout)
	defer cancel()

	id, err := p.runner.Run(ctx, ContainerSpec{
		Image:    p.cfg.PostgresImage,
		Port:     nat.Port("5432/tcp"),
		HostPort: 5432,
		Env: []string{
			"POSTGRES_USER=admin",
			"POSTGRES_PASSWORD=password",
		},
		Labels: map[string]string{"phalanx.provisioned": "postgresql"},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("postgresql container started", "container_id", id, "image", p.cfg.PostgresImage)
	return id, nil
}
