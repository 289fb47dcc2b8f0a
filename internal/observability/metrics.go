package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_grpc_client_handled_total",
			Help: "Total number of gRPC calls made to upstream directories.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	chatOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_operations_total",
			Help: "Chat lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)
	chatOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_operation_duration_seconds",
			Help:    "Chat lifecycle operation latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	tiesDetachFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ties_detach_failures_total",
			Help: "Partner detaches that failed after the chat was deleted.",
		},
	)
	notificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notification_failures_total",
			Help: "Realtime notifications that could not be delivered.",
		},
		[]string{"channel"},
	)
	roomCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_room_cache_lookups_total",
			Help: "Room cache lookups by result.",
		},
		[]string{"result"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcClientHandledTotal,
		chatOperationsTotal,
		chatOperationDuration,
		tiesDetachFailuresTotal,
		notificationFailuresTotal,
		roomCacheTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// GRPCClientMetricsUnaryInterceptor counts upstream calls by status code.
func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		service, name := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, name, status.Code(err).String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

// ObserveChatOperation records one lifecycle operation. outcome is an error kind or "ok".
func ObserveChatOperation(operation, outcome string, elapsed time.Duration) {
	chatOperationsTotal.WithLabelValues(operation, outcome).Inc()
	chatOperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func IncTiesDetachFailure() {
	tiesDetachFailuresTotal.Inc()
}

func IncNotificationFailure(channel string) {
	notificationFailuresTotal.WithLabelValues(channel).Inc()
}

func IncRoomCache(result string) {
	roomCacheTotal.WithLabelValues(result).Inc()
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
