package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-paystack-orderflow/internal/aws"
	"github.com/imrishuroy/go-paystack-orderflow/internal/config"
	"github.com/imrishuroy/go-paystack-orderflow/internal/handlers"
	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/notify"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

func newLogger(local bool) *slog.Logger {
	if local {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// newOrderStore picks the order store backend. The returned func releases it.
func newOrderStore(ctx context.Context, cfg *config.Config, clients *aws.AWSClients) (orders.Repository, func(), error) {
	if cfg.OrderStoreDriver == config.DriverPostgres {
		store, err := orders.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.OrdersReferenceIndex), func() {}, nil
}

func setupRouter(cfg *config.Config, clients *aws.AWSClients, orderStore orders.Repository, logger *slog.Logger) *gin.Engine {
	gateway := paystack.NewClient(paystack.ClientConfig{
		SecretKey: cfg.PaystackSecretKey,
		BaseURL:   cfg.PaystackBaseURL,
		Timeout:   cfg.PaystackTimeout,
	})
	dispatcher := notify.NewDispatcher(aws.NewPublisher(clients.SQS, cfg.NotificationsQueueURL), logger)

	svc := payments.NewService(payments.Config{
		Orders:          orderStore,
		Gateway:         gateway,
		Notifier:        dispatcher,
		Metrics:         aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		Logger:          logger,
		CallbackURL:     cfg.CallbackURL(),
		DefaultCurrency: cfg.DefaultCurrency,
		WebhookSecret:   cfg.PaystackWebhookSecret,
	})

	r := gin.New()
	r.Use(gin.Recovery())

	handlers.RegisterRoutes(r, handlers.Deps{
		Orders:          orderStore,
		Idempotency:     idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		Payments:        svc,
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.RunLocal)
	slog.SetDefault(logger)

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		logger.Error("init aws clients", "error", err)
		os.Exit(1)
	}

	orderStore, closeStore, err := newOrderStore(ctx, cfg, clients)
	if err != nil {
		logger.Error("init order store", "driver", cfg.OrderStoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	r := setupRouter(cfg, clients, orderStore, logger)

	if cfg.RunLocal {
		logger.Info("running local server", "addr", cfg.HTTPAddr, "order_store", cfg.OrderStoreDriver)
		if err := r.Run(cfg.HTTPAddr); err != nil {
			logger.Error("local server stopped", "error", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
