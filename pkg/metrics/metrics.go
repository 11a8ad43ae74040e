package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type WebSocketMetrics struct {
	ActiveConnections    prometheus.Gauge
	ConnectionsTotal     prometheus.Counter
	ConnectionDuration   prometheus.Histogram
	UnexpectedCloseCount prometheus.Counter
	MalformedEventCount  prometheus.Counter

	MessagesSent       *prometheus.CounterVec
	MessagesReceived   *prometheus.CounterVec
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
	SendBufferOverflow prometheus.Counter
}

type ChatMetrics struct {
	MessagesStored    prometheus.Counter
	MessagesDelivered prometheus.Counter
	MessagesRead      prometheus.Counter
	TypingEvents      prometheus.Counter
}

type LedgerMetrics struct {
	Topups             prometheus.Counter
	Transfers          prometheus.Counter
	Payments           prometheus.Counter
	RejectedOperations *prometheus.CounterVec
	AccountsTotal      prometheus.Gauge
	OperationDuration  prometheus.Histogram
}

type KafkaMetrics struct {
	MessagesProcessed *prometheus.CounterVec
	DeserializeErrors prometheus.Counter
	KafkaErrors       *prometheus.CounterVec
}

type HttpMetrics struct {
	RequestsTotal      *prometheus.CounterVec
	ResponseStatusCode *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

type SystemMetrics struct {
	GoroutineCount prometheus.Gauge
}

type Metrics struct {
	WebSocket WebSocketMetrics
	Chat      ChatMetrics
	Ledger    LedgerMetrics
	Kafka     KafkaMetrics
	Http      HttpMetrics
	System    SystemMetrics
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		WebSocket: WebSocketMetrics{
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_active_connections",
				Help:      "Количество активных WebSocket соединений",
			}),
			ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_connections_total",
				Help:      "Общее количество установленных WebSocket соединений",
			}),
			ConnectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "websocket_connection_duration_seconds",
				Help:      "Длительность WebSocket соединений в секундах",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			}),
			UnexpectedCloseCount: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_unexpected_close_total",
				Help:      "Количество неожиданно закрытых соединений",
			}),
			MalformedEventCount: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_malformed_events_total",
				Help:      "Количество отброшенных некорректных входящих событий",
			}),
			MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_sent_total",
				Help:      "Количество отправленных сообщений, по типам",
			}, []string{"event_type"}),
			MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_received_total",
				Help:      "Количество полученных сообщений, по типам",
			}, []string{"event_type"}),
			BytesSent: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_bytes_sent_total",
				Help:      "Количество отправленных байт",
			}),
			BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_bytes_received_total",
				Help:      "Количество полученных байт",
			}),
			SendBufferOverflow: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_send_buffer_overflow_total",
				Help:      "Количество переполнений буфера отправки",
			}),
		},
		Chat: ChatMetrics{
			MessagesStored: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_stored_total",
				Help:      "Количество сохранённых сообщений чата",
			}),
			MessagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_delivered_total",
				Help:      "Количество доставленных сообщений чата",
			}),
			MessagesRead: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_read_total",
				Help:      "Количество прочитанных сообщений чата",
			}),
			TypingEvents: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_typing_events_total",
				Help:      "Количество событий набора текста",
			}),
		},
		Ledger: LedgerMetrics{
			Topups: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_topups_total",
				Help:      "Количество успешных пополнений баланса",
			}),
			Transfers: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_transfers_total",
				Help:      "Количество успешных переводов",
			}),
			Payments: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_payments_total",
				Help:      "Количество успешных платежей",
			}),
			RejectedOperations: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_rejected_operations_total",
				Help:      "Количество отклонённых операций, по причинам",
			}, []string{"reason"}),
			AccountsTotal: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_accounts_total",
				Help:      "Количество счетов",
			}),
			OperationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Время выполнения операций с балансом",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 10),
			}),
		},
		Kafka: KafkaMetrics{
			MessagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_messages_processed_total",
				Help:      "Количество обработанных сообщений из Kafka, по темам",
			}, []string{"topic"}),
			DeserializeErrors: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_deserialize_errors_total",
				Help:      "Количество ошибок десериализации сообщений из Kafka",
			}),
			KafkaErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_errors_total",
				Help:      "Количество ошибок Kafka, по кодам ошибок",
			}, []string{"code"}),
		},
		Http: HttpMetrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Количество HTTP-запросов, по методам и путям",
			}, []string{"method", "path"}),
			ResponseStatusCode: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_response_status_code_total",
				Help:      "Количество HTTP-ответов, по кодам статуса",
			}, []string{"status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Время обработки HTTP-запроса",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
			}, []string{"path"}),
		},
		System: SystemMetrics{
			GoroutineCount: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_goroutine_count",
				Help:      "Количество активных горутин",
			}),
		},
	}

	return m
}
