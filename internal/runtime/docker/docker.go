package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
)

const (
	containerPrefix = "sbxhub-"
	labelSandboxID  = "sbxhub.sandbox.id"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

//go:generate mockery --case underscore --output dockermock --outpkg dockermock --name DockerClient

// RuntimeConfig is the configuration for the Docker runtime.
type RuntimeConfig struct {
	Client DockerClient
	// PublishHost is the host address ports are published on, and the host used on the exposed URLs.
	PublishHost string
	// Backoff is used to retry transient Docker daemon errors.
	Backoff *wait.Backoff
	Logger  log.Logger
}

func (c *RuntimeConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.PublishHost == "" {
		c.PublishHost = "127.0.0.1"
	}
	if c.Backoff == nil {
		b := runtime.DefaultBackoff
		c.Backoff = &b
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Docker"})
	return nil
}

// Runtime is the Docker implementation of runtime.Runtime.
// Every sandbox is a single container named after the sandbox ID.
type Runtime struct {
	client      DockerClient
	publishHost string
	backoff     wait.Backoff
	logger      log.Logger
}

// NewRuntime creates a new Docker runtime.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		client:      cfg.Client,
		publishHost: cfg.PublishHost,
		backoff:     *cfg.Backoff,
		logger:      cfg.Logger,
	}, nil
}

// Metadata is the opaque data the Docker runtime stores on the sandbox.
type Metadata struct {
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	Image         string `json:"image"`
}

// Create pulls the image, creates and starts the sandbox container.
func (r *Runtime) Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("sandbox id is required: %w: %w", model.ErrProvision, model.ErrNotValid)
	}
	if spec.Image == "" {
		return nil, fmt.Errorf("docker image is required: %w: %w", model.ErrProvision, model.ErrNotValid)
	}

	name := containerName(spec.ID)

	r.logger.Infof("[1/3] Pulling image: %s", spec.Image)
	err := runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		pullResp, err := r.client.ImagePull(ctx, spec.Image, image.PullOptions{})
		if err != nil {
			return classify(err)
		}
		defer pullResp.Close()
		// Consume the pull response to ensure it completes.
		_, err = io.Copy(io.Discard, pullResp)
		return err
	})
	if err != nil {
		return nil, provisionErr(fmt.Errorf("could not pull image %s: %w", spec.Image, err))
	}

	r.logger.Infof("[2/3] Creating container: %s", name)
	containerCfg, hostCfg := r.containerConfig(spec)
	var (
		containerID string
		adoptErr    error
	)
	err = runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		resp, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
		// A previous attempt may have created it before the connection dropped.
		if cerrdefs.IsConflict(err) {
			containerID, adoptErr = r.adopt(ctx, spec.ID, name)
			if adoptErr != nil {
				return fmt.Errorf("%w: %w", adoptErr, err)
			}
			r.logger.Warningf("Container %s already exists, adopting it", name)
			return nil
		}
		if err != nil {
			return classify(err)
		}
		containerID = resp.ID
		return nil
	})
	if err != nil {
		if adoptErr != nil && !errors.Is(adoptErr, errForeignContainer) {
			return nil, runtime.TimeoutErr(ctx, fmt.Errorf("container %s may exist but could not be inspected: %w: %w", name, model.ErrTransientInfra, err))
		}
		return nil, provisionErr(fmt.Errorf("could not create container: %w", err))
	}

	r.logger.Infof("[3/3] Starting container: %s", containerID)
	err = runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		return classify(r.client.ContainerStart(ctx, containerID, container.StartOptions{}))
	})
	if err != nil {
		// Don't leave a created container behind.
		if rmErr := r.client.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true}); rmErr != nil {
			r.logger.Warningf("Could not remove container %s after failed start: %v", containerID, rmErr)
		}
		return nil, provisionErr(fmt.Errorf("could not start container: %w", err))
	}

	status, urls, err := r.inspect(ctx, spec.ID)
	if err != nil {
		return nil, fmt.Errorf("could not inspect created container: %w", err)
	}

	metadata, err := json.Marshal(Metadata{ContainerID: containerID, ContainerName: name, Image: spec.Image})
	if err != nil {
		return nil, fmt.Errorf("could not marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	sandbox := &model.Sandbox{
		ID:          spec.ID,
		Name:        spec.Name,
		Backend:     model.BackendDocker,
		Status:      status,
		Spec:        spec,
		ExposedURLs: urls,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == model.SandboxStatusRunning {
		sandbox.StartedAt = &now
	}

	r.logger.Infof("Created Docker sandbox: %s (container: %s)", spec.ID, containerID)

	return sandbox, nil
}

// Status returns the sandbox status based on the container state.
func (r *Runtime) Status(ctx context.Context, id string) (model.SandboxStatus, error) {
	status, _, err := r.inspect(ctx, id)
	if err != nil {
		return "", err
	}

	return status, nil
}

// Terminate force removes the sandbox container.
func (r *Runtime) Terminate(ctx context.Context, id string) error {
	name := containerName(id)

	r.logger.Infof("Removing container: %s", name)
	err := runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		return classify(r.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}))
	})
	if err != nil {
		if isNotFound(err) {
			r.logger.Debugf("Container %s already removed", name)
			return nil
		}
		return fmt.Errorf("could not remove container %s: %w", name, err)
	}

	r.logger.Infof("Terminated Docker sandbox: %s", id)
	return nil
}

// ExposedURLs returns the URLs of the published container ports.
func (r *Runtime) ExposedURLs(ctx context.Context, id string) ([]model.ExposedURL, error) {
	_, urls, err := r.inspect(ctx, id)
	if err != nil {
		return nil, err
	}

	return urls, nil
}

// Check implements runtime.Checker.
func (r *Runtime) Check(ctx context.Context) []model.CheckResult {
	ping, err := r.client.Ping(ctx)
	if err != nil {
		return []model.CheckResult{{
			ID:      "docker_daemon",
			Message: fmt.Sprintf("Docker daemon not reachable: %v", err),
			Status:  model.CheckStatusError,
		}}
	}

	return []model.CheckResult{{
		ID:      "docker_daemon",
		Message: fmt.Sprintf("Docker daemon reachable (API %s)", ping.APIVersion),
		Status:  model.CheckStatusOK,
	}}
}

func (r *Runtime) inspect(ctx context.Context, id string) (model.SandboxStatus, []model.ExposedURL, error) {
	name := containerName(id)

	var info container.InspectResponse
	err := runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		var err error
		info, err = r.client.ContainerInspect(ctx, name)
		return classify(err)
	})
	if err != nil {
		return "", nil, fmt.Errorf("could not inspect container %s: %w", name, err)
	}

	if info.ContainerJSONBase == nil || info.State == nil {
		return model.SandboxStatusUnknown, nil, nil
	}

	status := mapState(string(info.State.Status), info.State.ExitCode)
	if status != model.SandboxStatusRunning || info.NetworkSettings == nil {
		return status, nil, nil
	}

	return status, r.urlsFromPorts(info.NetworkSettings.Ports), nil
}

var errForeignContainer = errors.New("container name used by a container of another sandbox")

// adopt returns the ID of the existing container with the sandbox name when it belongs to the sandbox.
func (r *Runtime) adopt(ctx context.Context, id, name string) (string, error) {
	var info container.InspectResponse
	err := runtime.RetryTransient(ctx, r.backoff, func(ctx context.Context) error {
		var err error
		info, err = r.client.ContainerInspect(ctx, name)
		return classify(err)
	})
	if err != nil {
		return "", fmt.Errorf("could not inspect container %s: %w", name, err)
	}

	if info.ContainerJSONBase == nil || info.Config == nil || info.Config.Labels[labelSandboxID] != id {
		return "", errForeignContainer
	}

	return info.ID, nil
}

func (r *Runtime) containerConfig(spec model.SandboxSpec) (*container.Config, *container.HostConfig) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	labels := map[string]string{labelSandboxID: spec.ID}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", p))
		exposed[port] = struct{}{}
		// Empty host port lets Docker pick a free one.
		bindings[port] = []nat.PortBinding{{HostIP: r.publishHost}}
	}

	cmd := spec.Command
	if len(cmd) == 0 {
		cmd = []string{"tail", "-f", "/dev/null"} // Keep container running.
	}

	containerCfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		Cmd:          cmd,
		Labels:       labels,
		ExposedPorts: exposed,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Resources: container.Resources{
			NanoCPUs: int64(spec.Resources.VCPUs * 1e9),
			Memory:   int64(spec.Resources.MemoryMB) * 1024 * 1024,
		},
	}

	return containerCfg, hostCfg
}

func (r *Runtime) urlsFromPorts(ports nat.PortMap) []model.ExposedURL {
	var urls []model.ExposedURL
	for port, bindings := range ports {
		if port.Proto() != "tcp" {
			continue
		}
		for _, b := range bindings {
			if b.HostPort == "" {
				continue
			}
			host := b.HostIP
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = r.publishHost
			}
			urls = append(urls, model.ExposedURL{
				Port: port.Int(),
				URL:  fmt.Sprintf("http://%s:%s", host, b.HostPort),
			})
			break
		}
	}

	sort.Slice(urls, func(i, j int) bool { return urls[i].Port < urls[j].Port })
	return urls
}

func mapState(state string, exitCode int) model.SandboxStatus {
	switch state {
	case "created":
		return model.SandboxStatusPending
	case "restarting":
		return model.SandboxStatusStarting
	case "running", "paused":
		return model.SandboxStatusRunning
	case "removing":
		return model.SandboxStatusStopping
	case "exited":
		if exitCode != 0 {
			return model.SandboxStatusFailed
		}
		return model.SandboxStatusStopped
	case "dead":
		return model.SandboxStatusFailed
	default:
		return model.SandboxStatusUnknown
	}
}

func containerName(id string) string {
	return containerPrefix + strings.ToLower(id)
}

// classify translates Docker errors into the model errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case cerrdefs.IsNotFound(err):
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case client.IsErrConnectionFailed(err), cerrdefs.IsUnavailable(err):
		return fmt.Errorf("%w: %w", model.ErrTransientInfra, err)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) || cerrdefs.IsNotFound(err)
}

// provisionErr marks create errors as provision errors, timeouts are kept as they are
// because something may have been created.
func provisionErr(err error) error {
	if errors.Is(err, model.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrProvision, err)
}
