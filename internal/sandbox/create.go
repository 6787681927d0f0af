package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	dockernat "github.com/docker/go-connections/nat"
	"go.uber.org/zap"
)

var excludedDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	".git":         true,
}

func containerNameFor(jobID string) string {
	slug := strings.ToLower(jobID)
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, slug)
	return "ai-modernizer-" + slug
}

// containerPortFor returns the port the stack's start command is expected
// to listen on, keyed by project kind convention.
func containerPortFor(kind ProjectKind) string {
	switch kind {
	case KindNodeJS:
		return "3000/tcp"
	case KindPython:
		return "5000/tcp"
	default:
		return ""
	}
}

// create builds a fresh container for the validation run, stopping and
// removing any stale container of the same name first (an idempotent
// reap grounded on the teacher's RemoveContainer(force=true)), then
// creates the new container with an ephemeral host port binding and
// reads the assigned port back from inspect — the same
// create-then-inspect-to-confirm idiom as the teacher's
// verifyContainerCreation.
func (c *dockerClient) create(ctx context.Context, req ValidateRequest, keepRunning bool) (containerID, containerName, hostPort string, err error) {
	cli := c.raw()
	name := containerNameFor(req.JobID)

	_ = cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})

	image := imageFor(req.Kind)
	port := containerPortFor(req.Kind)

	exposedPorts := dockernat.PortSet{}
	portBindings := dockernat.PortMap{}
	if port != "" {
		p := dockernat.Port(port)
		exposedPorts[p] = struct{}{}
		portBindings[p] = []dockernat.PortBinding{{HostIP: "127.0.0.1", HostPort: "0"}}
	}

	cfg := &container.Config{
		Image:        image,
		WorkingDir:   "/workspace",
		Cmd:          []string{"tail", "-f", "/dev/null"},
		ExposedPorts: exposedPorts,
		Labels: map[string]string{
			"ai-modernizer.job": req.JobID,
		},
	}
	if keepRunning {
		cfg.Labels["ai-modernizer.debug"] = "true"
	}

	hostCfg := &container.HostConfig{
		PortBindings: portBindings,
		AutoRemove:   false,
	}

	var resp container.CreateResponse
	createErr := c.withRetry(ctx, "container_create", 2, func() error {
		r, e := cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
		if e != nil {
			return e
		}
		resp = r
		return nil
	})
	if createErr != nil {
		return "", "", "", fmt.Errorf("failed to create sandbox container: %w", createErr)
	}

	for _, warning := range resp.Warnings {
		if c.logger != nil {
			c.logger.Warn("sandbox container creation warning", zap.String("warning", warning))
		}
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", "", "", fmt.Errorf("failed to start sandbox container: %w", err)
	}

	assigned := ""
	if port != "" {
		inspect, err := cli.ContainerInspect(ctx, resp.ID)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to inspect sandbox container after create: %w", err)
		}
		if bindings, ok := inspect.NetworkSettings.Ports[dockernat.Port(port)]; ok && len(bindings) > 0 {
			assigned = bindings[0].HostPort
		}
	}

	if c.logger != nil {
		c.logger.Info("sandbox container created",
			zap.String("container_id", resp.ID),
			zap.String("name", name),
			zap.String("image", image),
			zap.String("host_port", assigned),
		)
	}

	return resp.ID, name, assigned, nil
}

// teardown stops and force-removes the sandbox container unless keep is
// true, in which case it is left running and labelled for later manual
// inspection.
func (c *dockerClient) teardown(ctx context.Context, containerID string, keep bool) error {
	if containerID == "" {
		return nil
	}
	if keep {
		if c.logger != nil {
			c.logger.Info("leaving sandbox container running for debug", zap.String("container_id", containerID))
		}
		return nil
	}

	cli := c.raw()
	timeout := 5
	_ = cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove sandbox container: %w", err)
	}
	if c.logger != nil {
		c.logger.Info("sandbox container torn down", zap.String("container_id", containerID))
	}
	return nil
}

// populate streams projectDir into the container's /workspace, excluding
// dependency and VCS directories that would be slow to copy and are
// reinstalled fresh inside the sandbox anyway.
func (c *dockerClient) populate(ctx context.Context, containerID, projectDir string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(projectDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if excludedDirs[part] {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build tar header for %s: %w", rel, err)
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", rel, err)
		}

		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to write tar body for %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to archive project directory: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize project archive: %w", err)
	}

	cli := c.raw()
	start := time.Now()
	copyErr := cli.CopyToContainer(ctx, containerID, "/workspace", &buf, container.CopyToContainerOptions{})
	_ = time.Since(start)
	if copyErr != nil {
		return fmt.Errorf("failed to copy project into container: %w", copyErr)
	}
	return nil
}
