//go:build integration

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRabbitMQContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get rabbitmq host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatalf("failed to get rabbitmq port: %v", err)
	}

	return container, fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestRabbitMQPublisher_LoanDisbursed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	const exchange = "bank.loans.test"

	container, url := startRabbitMQContainer(t, ctx)
	defer container.Terminate(ctx)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	publisher, err := NewRabbitMQPublisher(url, exchange, logger)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	defer publisher.Close()

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.Fatalf("failed to declare queue: %v", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyLoanDisbursed, exchange, false, nil); err != nil {
		t.Fatalf("failed to bind queue: %v", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		t.Fatalf("failed to start consuming: %v", err)
	}

	app, loan := disbursedApplication()
	if err := publisher.PublishLoanDisbursed(ctx, app, loan); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case msg := <-msgs:
		var event LoanDisbursedEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if event.ApplicationNumber != "LA000042" || event.LoanID != loan.ID.String() {
			t.Errorf("unexpected event %+v", event)
		}
		if msg.ContentType != "application/json" {
			t.Errorf("unexpected content type %s", msg.ContentType)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for loan disbursed event")
	}
}
