package deploy_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// compose holds only the parts of docker-compose.yml the tests assert on.
type compose struct {
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]any            `yaml:"volumes"`
	Networks map[string]composeNetwork `yaml:"networks"`
}

type composeNetwork struct {
	Driver string `yaml:"driver"`
}

type composeService struct {
	Image       string         `yaml:"image"`
	Build       composeBuild   `yaml:"build"`
	Ports       []string       `yaml:"ports"`
	Environment []string       `yaml:"environment"`
	DependsOn   map[string]any `yaml:"depends_on"`
	Volumes     []string       `yaml:"volumes"`
	Healthcheck composeProbe   `yaml:"healthcheck"`
	Restart     string         `yaml:"restart"`
	Command     string         `yaml:"command"`
	Networks    []string       `yaml:"networks"`
}

type composeBuild struct {
	Context string `yaml:"context"`
}

// composeProbe keeps only the probe command; timings are not asserted.
type composeProbe struct {
	Test []string `yaml:"test"`
}

func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..")
}

func readCompose(t *testing.T) compose {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(projectRoot(), "docker-compose.yml"))
	if err != nil {
		t.Fatalf("failed to read docker-compose.yml: %v", err)
	}
	var c compose
	if err := yaml.Unmarshal(data, &c); err != nil {
		t.Fatalf("failed to parse docker-compose.yml: %v", err)
	}
	return c
}

func hasEntry(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestComposeServices(t *testing.T) {
	c := readCompose(t)
	for _, name := range []string{"storyestimate", "redis"} {
		if _, ok := c.Services[name]; !ok {
			t.Errorf("missing service: %s", name)
		}
	}
	if len(c.Services) != 2 {
		t.Errorf("expected 2 services, got %d", len(c.Services))
	}
}

func TestServerService(t *testing.T) {
	svc := readCompose(t).Services["storyestimate"]

	if svc.Build.Context != "." {
		t.Error("server build context should be the repository root")
	}
	if !hasEntry(svc.Ports, "8000:8000") {
		t.Errorf("expected port mapping 8000:8000, got %v", svc.Ports)
	}
	if _, ok := svc.DependsOn["redis"]; !ok {
		t.Error("server should depend on redis")
	}
	if !strings.Contains(strings.Join(svc.Healthcheck.Test, " "), "/health") {
		t.Error("server healthcheck should probe /health")
	}
	for _, env := range []string{"STORE_BACKEND=redis", "REDIS_ADDR=redis:6379"} {
		if !hasEntry(svc.Environment, env) {
			t.Errorf("server should set %s", env)
		}
	}
}

func TestRedisService(t *testing.T) {
	c := readCompose(t)
	redis := c.Services["redis"]

	if !strings.HasPrefix(redis.Image, "redis:") {
		t.Errorf("redis image should be redis:*, got %s", redis.Image)
	}
	if len(redis.Healthcheck.Test) == 0 {
		t.Error("redis should have a healthcheck")
	}
	if !hasEntry(redis.Volumes, "redis-data:/data") {
		t.Error("redis should mount a persistent data volume")
	}
	if _, ok := c.Volumes["redis-data"]; !ok {
		t.Error("redis-data volume should be defined at the top level")
	}
	// Sessions must never be evicted under memory pressure.
	if !strings.Contains(redis.Command, "--maxmemory-policy noeviction") {
		t.Errorf("redis should use noeviction, got %q", redis.Command)
	}
}

func TestServicesShareNetwork(t *testing.T) {
	c := readCompose(t)
	net, ok := c.Networks["storyestimate"]
	if !ok {
		t.Fatal("storyestimate network should be defined at the top level")
	}
	if net.Driver != "bridge" {
		t.Errorf("network driver should be bridge, got %q", net.Driver)
	}
	for name, svc := range c.Services {
		if !hasEntry(svc.Networks, "storyestimate") {
			t.Errorf("service %s should be on the storyestimate network", name)
		}
		if svc.Restart != "unless-stopped" {
			t.Errorf("service %s should have restart: unless-stopped, got %q", name, svc.Restart)
		}
	}
}

func TestDockerfile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(projectRoot(), "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{"FROM golang:", "AS builder", "./cmd/server", "EXPOSE 8000"} {
		if !strings.Contains(content, want) {
			t.Errorf("Dockerfile should contain %q", want)
		}
	}
}

// Every non-glob COPY source from the build context must be in the tree,
// otherwise the image build fails before compiling anything.
func TestDockerfileCopySourcesExist(t *testing.T) {
	root := projectRoot()
	data, err := os.ReadFile(filepath.Join(root, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "COPY" || strings.HasPrefix(fields[1], "--from") {
			continue
		}
		for _, src := range fields[1 : len(fields)-1] {
			if strings.ContainsAny(src, "*?[") {
				continue
			}
			if _, err := os.Stat(filepath.Join(root, src)); err != nil {
				t.Errorf("Dockerfile copies %s, which is not in the repository: %v", src, err)
			}
		}
	}
}

func TestDockerignore(t *testing.T) {
	data, err := os.ReadFile(filepath.Join(projectRoot(), ".dockerignore"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{".git", ".env", "*.db"} {
		if !strings.Contains(string(data), want) {
			t.Errorf(".dockerignore should exclude %s", want)
		}
	}
}
