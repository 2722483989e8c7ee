package store

import (
	"context"
	"time"

	"github.com/hatlonely/nosqlx/cfg/def"
	"github.com/hatlonely/nosqlx/log"
	"github.com/hatlonely/nosqlx/log/logger"
	"github.com/hatlonely/nosqlx/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObservableStoreOptions struct {
	// Store 被包装的底层存储配置
	Store ref.TypeOptions `cfg:"store"`
	// Logger 为空时使用 log.Default()
	Logger        ref.TypeOptions `cfg:"logger"`
	EnableMetrics bool            `cfg:"enableMetrics"`
	EnableLogging bool            `cfg:"enableLogging"`
	EnableTracing bool            `cfg:"enableTracing"`
	// Name 作为指标名前缀、日志的 component 字段和 span 的 component 属性
	Name string `cfg:"name" def:"nosqlx_store"`
}

// ObservableMetrics 封装 prometheus 指标
type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
}

// NewObservableMetrics 创建指标并注册到 registerer，同名指标已注册时复用已有的
func NewObservableMetrics(name string, registerer prometheus.Registerer) *ObservableMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &ObservableMetrics{
		operationCounter: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"operation", "collection", "status"},
		)),
		operationDuration: register(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of document store operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation", "collection"},
		)),
		activeOperations: register(registerer, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_operations",
				Help: "Number of active document store operations",
			},
			[]string{"operation"},
		)),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return collector
}

// ObservableStore 装饰器，为任意 Store 添加指标、日志和追踪
type ObservableStore struct {
	store   Store
	name    string
	logger  logger.Logger
	metrics *ObservableMetrics
	tracer  trace.Tracer
}

type ObservableOption func(*ObservableStore)

func WithMetrics(metrics *ObservableMetrics) ObservableOption {
	return func(s *ObservableStore) {
		s.metrics = metrics
	}
}

func WithLogger(l logger.Logger) ObservableOption {
	return func(s *ObservableStore) {
		s.logger = l
	}
}

func WithTracer(tracer trace.Tracer) ObservableOption {
	return func(s *ObservableStore) {
		s.tracer = tracer
	}
}

func NewObservableStore(s Store, name string, opts ...ObservableOption) *ObservableStore {
	obs := &ObservableStore{store: s, name: name}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

func NewObservableStoreWithOptions(options *ObservableStoreOptions) (*ObservableStore, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := def.SetDefaults(options); err != nil {
		return nil, err
	}

	s, err := NewStoreWithOptions(&options.Store)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying store")
	}

	var opts []ObservableOption
	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(&options.Logger)
		if err != nil {
			_ = s.Close()
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		opts = append(opts, WithLogger(l.WithGroup("observableStore")))
	}
	if options.EnableMetrics {
		opts = append(opts, WithMetrics(NewObservableMetrics(options.Name, prometheus.DefaultRegisterer)))
	}
	if options.EnableTracing {
		opts = append(opts, WithTracer(otel.Tracer("store."+options.Name)))
	}

	return NewObservableStore(s, options.Name, opts...), nil
}

// observe 统一的操作观测逻辑
func (obs *ObservableStore) observe(ctx context.Context, operation string, collection string, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, "store."+operation,
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("operation", operation),
				attribute.String("collection", collection),
			),
		)
		defer span.End()
	}

	if obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, collection, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
	}

	if obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "store operation failed",
				"component", obs.name,
				"operation", operation,
				"collection", collection,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.DebugContext(ctx, "store operation completed",
				"component", obs.name,
				"operation", operation,
				"collection", collection,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (obs *ObservableStore) Collection(database string, collection string) Collection {
	return &observableCollection{
		Collection: obs.store.Collection(database, collection),
		obs:        obs,
		name:       database + "." + collection,
	}
}

func (obs *ObservableStore) Ping(ctx context.Context) error {
	return obs.observe(ctx, "ping", "", obs.store.Ping)
}

func (obs *ObservableStore) Close() error {
	return obs.observe(context.Background(), "close", "", func(ctx context.Context) error {
		return obs.store.Close()
	})
}

type observableCollection struct {
	Collection
	obs  *ObservableStore
	name string
}

func (c *observableCollection) Insert(ctx context.Context, doc bson.D) (any, error) {
	var id any
	err := c.obs.observe(ctx, "insert", c.name, func(ctx context.Context) error {
		var err error
		id, err = c.Collection.Insert(ctx, doc)
		return err
	})
	return id, err
}

func (c *observableCollection) Save(ctx context.Context, doc bson.D) (any, error) {
	var id any
	err := c.obs.observe(ctx, "save", c.name, func(ctx context.Context) error {
		var err error
		id, err = c.Collection.Save(ctx, doc)
		return err
	})
	return id, err
}

func (c *observableCollection) Update(ctx context.Context, filter bson.M, update bson.M, multi bool) (*UpdateResult, error) {
	var result *UpdateResult
	err := c.obs.observe(ctx, "update", c.name, func(ctx context.Context) error {
		var err error
		result, err = c.Collection.Update(ctx, filter, update, multi)
		return err
	})
	return result, err
}

func (c *observableCollection) Remove(ctx context.Context, filter bson.M) (*RemoveResult, error) {
	var result *RemoveResult
	err := c.obs.observe(ctx, "remove", c.name, func(ctx context.Context) error {
		var err error
		result, err = c.Collection.Remove(ctx, filter)
		return err
	})
	return result, err
}

func (c *observableCollection) Find(ctx context.Context, filter bson.M, opts ...QueryOption) (Cursor, error) {
	var cursor Cursor
	err := c.obs.observe(ctx, "find", c.name, func(ctx context.Context) error {
		var err error
		cursor, err = c.Collection.Find(ctx, filter, opts...)
		return err
	})
	return cursor, err
}

// FindOne 未找到不计为失败
func (c *observableCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	var doc bson.M
	var notFound bool
	err := c.obs.observe(ctx, "find_one", c.name, func(ctx context.Context) error {
		var err error
		doc, err = c.Collection.FindOne(ctx, filter)
		if errors.Is(err, ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if notFound {
		return nil, ErrRecordNotFound
	}
	return doc, err
}

func (c *observableCollection) Count(ctx context.Context, filter bson.M) (int64, error) {
	var n int64
	err := c.obs.observe(ctx, "count", c.name, func(ctx context.Context) error {
		var err error
		n, err = c.Collection.Count(ctx, filter)
		return err
	})
	return n, err
}
