package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipRabbitMQTestsEnv = "true"

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRabbitMQContainer(ctx context.Context, t *testing.T) (testcontainers.Container, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForListeningPort("5672/tcp").
			WithStartupTimeout(2 * time.Minute),
	}

	rmqContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	cleanup := func() {
		if err := rmqContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	}
	return rmqContainer, cleanup
}

func getAmqpURI(ctx context.Context, container testcontainers.Container) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, "5672/tcp")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port()), nil
}

// amqpURIForTest адрес брокера: TEST_RABBITMQ_URL или контейнер.
func amqpURIForTest(t *testing.T) string {
	t.Helper()
	if os.Getenv("SKIP_RABBITMQ_TESTS") == skipRabbitMQTestsEnv {
		t.Skip("Skipping RabbitMQ tests")
	}
	if testing.Short() {
		t.Skip("skipping rabbitmq test in short mode")
	}
	if uri := os.Getenv("TEST_RABBITMQ_URL"); uri != "" {
		return uri
	}
	ctx := context.Background()
	container, cleanup := setupRabbitMQContainer(ctx, t)
	t.Cleanup(cleanup)
	uri, err := getAmqpURI(ctx, container)
	require.NoError(t, err)
	return uri
}
