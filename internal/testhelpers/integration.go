//go:build integration
// +build integration

// Package testhelpers starts throwaway backing services for integration
// tests. Each helper skips the test when Docker is unavailable and registers
// container cleanup with t.Cleanup.
package testhelpers

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kjstillabower/station-collector/internal/store"
)

const (
	testDatabase = "weather"
	testUser     = "collector"
	testPassword = "collector-test"
)

// startContainer runs req and returns its host and the mapped host port of
// exposed. The test is skipped if the container cannot be started and
// SKIP_CONTAINER_TESTS is not explicitly "false".
func startContainer(t *testing.T, req tc.ContainerRequest, exposed string) (string, int) {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if os.Getenv("SKIP_CONTAINER_TESTS") == "false" {
			t.Fatalf("start %s container: %v", req.Image, err)
		}
		t.Skipf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		t.Fatalf("container port %s: %v", exposed, err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("container port %q: %v", mapped.Port(), err)
	}
	return host, port
}

// PostgresConfig starts postgres and returns a store config pointing at it.
func PostgresConfig(t *testing.T) store.Config {
	t.Helper()
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// the entrypoint restarts the server once after init
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	return store.Config{
		Driver:           store.DriverPostgres,
		Host:             host,
		Port:             port,
		User:             testUser,
		Password:         testPassword,
		Database:         testDatabase,
		SSLMode:          "disable",
		StationTable:     "station",
		ObservationTable: "observation",
	}
}

// MySQLConfig starts mysql and returns a store config pointing at it.
func MySQLConfig(t *testing.T) store.Config {
	t.Helper()
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_ROOT_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(2 * time.Minute),
	}, "3306/tcp")

	return store.Config{
		Driver:           store.DriverMySQL,
		Host:             host,
		Port:             port,
		User:             testUser,
		Password:         testPassword,
		Database:         testDatabase,
		StationTable:     "station",
		ObservationTable: "observation",
	}
}

// MemcachedAddr starts memcached unless MEMCACHED_ADDRS is set, and returns
// a host:port address.
func MemcachedAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("MEMCACHED_ADDRS"); addr != "" {
		return addr
	}
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "memcached:1.6-alpine",
		ExposedPorts: []string{"11211/tcp"},
		WaitingFor:   wait.ForListeningPort("11211/tcp").WithStartupTimeout(30 * time.Second),
	}, "11211/tcp")
	return host + ":" + strconv.Itoa(port)
}

// RedisURL starts redis unless REDIS_URL is set, and returns a redis:// URL.
func RedisURL(t *testing.T) string {
	t.Helper()
	if u := os.Getenv("REDIS_URL"); u != "" {
		return u
	}
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")
	return "redis://" + host + ":" + strconv.Itoa(port) + "/0"
}
