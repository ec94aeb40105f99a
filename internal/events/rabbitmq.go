package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingKeyLoanDisbursed is the routing key of LoanDisbursedEvent
const RoutingKeyLoanDisbursed = "loan.disbursed"

// Amount is the wire form of a monetary value
type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currencyCode"`
}

// LoanDisbursedEvent is published once a loan application has been disbursed
type LoanDisbursedEvent struct {
	EventID           string `json:"eventId"`
	LoanID            string `json:"loanId"`
	ApplicationID     string `json:"applicationId"`
	ApplicationNumber string `json:"applicationNumber"`
	OwnerID           string `json:"ownerId"`
	LoanAccountNumber string `json:"loanAccountNumber,omitempty"`
	Principal         Amount `json:"principal"`
	InterestRate      string `json:"interestRate"`
	TermMonths        int    `json:"termMonths"`
	Timestamp         string `json:"timestamp"`
}

// NewLoanDisbursedEvent builds the event for a disbursed application and its loan
func NewLoanDisbursedEvent(app *models.LoanApplication, loan *models.Loan) LoanDisbursedEvent {
	principal := loan.Principal()
	return LoanDisbursedEvent{
		EventID:           uuid.NewString(),
		LoanID:            loan.ID.String(),
		ApplicationID:     app.ID.String(),
		ApplicationNumber: app.Number,
		OwnerID:           loan.OwnerID.String(),
		LoanAccountNumber: loan.LoanAccountNumber,
		Principal: Amount{
			Value:        principal.Value.StringFixed(2),
			CurrencyCode: principal.Currency,
		},
		InterestRate: loan.InterestRate().String(),
		TermMonths:   loan.TermMonths(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

// RabbitMQPublisher publishes domain events to a topic exchange
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Logger

	mu sync.Mutex
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the exchange
func NewRabbitMQPublisher(url, exchange string, logger *logrus.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Infof("RabbitMQ publisher initialized: exchange=%s", exchange)

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// PublishLoanDisbursed publishes a LoanDisbursedEvent for the application and its loan
func (p *RabbitMQPublisher) PublishLoanDisbursed(ctx context.Context, app *models.LoanApplication, loan *models.Loan) error {
	event := NewLoanDisbursedEvent(app, loan)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,              // exchange
		RoutingKeyLoanDisbursed, // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithField("application_id", event.ApplicationID).Infof("Published %s event %s", RoutingKeyLoanDisbursed, event.EventID)
	return nil
}

// Close closes the RabbitMQ connection and channel
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warnf("Error closing channel: %v", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
