package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-paystack-orderflow/internal/aws"
	"github.com/imrishuroy/go-paystack-orderflow/internal/config"
	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.RunLocal {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Error("init aws clients", "error", err)
		os.Exit(1)
	}

	dedup := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	var sender Sender = logSender{logger: logger}
	if cfg.MailQueueURL != "" {
		sender = relaySender{relay: aws.NewPublisher(clients.SQS, cfg.MailQueueURL), logger: logger}
	} else {
		logger.Warn("MAIL_QUEUE_URL not set, notifications are only logged")
	}
	p := NewProcessor(dedup, sender, logger)

	// RUN_LOCAL feeds a single message from LOCAL_SQS_BODY through the handler.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"kind":"order_confirmed","order_id":"local-order-1","user_id":"local-user","email":"dev@example.com","reference":"ord_local","amount":100,"currency":"NGN"}`
		}
		resp, err := p.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Error("local run failed", "error", err, "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
