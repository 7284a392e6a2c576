package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig 描述 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	Durable    bool
	AutoDelete bool
}

// RabbitMQQueue 以任务 ID 作为消息体的 RabbitMQ 队列，消费采用手动确认。
type RabbitMQQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	tag   string

	// amqp.Channel 的发布不保证并发安全
	publishMu sync.Mutex
}

// NewRabbitMQQueue 连接 RabbitMQ 并声明队列。
func NewRabbitMQQueue(cfg RabbitMQConfig) (*RabbitMQQueue, error) {
	if cfg.URL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "RabbitMQ URL 不能为空")
	}
	if cfg.Queue == "" {
		cfg.Queue = "agentswap.messages"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "连接 RabbitMQ 失败")
	}
	q := &RabbitMQQueue{conn: conn, queue: cfg.Queue, tag: "agentswapd-" + uuid.NewString()[:8]}
	if err := q.setup(cfg); err != nil {
		_ = q.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitMQQueue) setup(cfg RabbitMQConfig) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "创建 RabbitMQ channel 失败")
	}
	q.ch = ch
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return xerrors.Wrap(xerrors.CodeQueueFailure, err, "设置 RabbitMQ QOS 失败")
		}
	}
	if _, err := ch.QueueDeclare(cfg.Queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "声明 RabbitMQ 队列失败")
	}
	return nil
}

// Publish 投递任务 ID，消息 ID 与任务 ID 相同。
func (q *RabbitMQQueue) Publish(ctx context.Context, taskID string) error {
	if q == nil || q.ch == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "RabbitMQ 队列未初始化")
	}
	msg := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    taskID,
		Timestamp:    time.Now().UTC(),
		AppId:        "agentswapd",
		Body:         []byte(taskID),
	}
	q.publishMu.Lock()
	err := q.ch.PublishWithContext(ctx, "", q.queue, false, false, msg)
	q.publishMu.Unlock()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "RabbitMQ 发布任务失败")
	}
	return nil
}

// Consume 订阅队列并启动 workerCount 个协程，ctx 结束时取消订阅。
func (q *RabbitMQQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if q == nil || q.ch == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "RabbitMQ 队列未初始化")
	}
	deliveries, err := q.ch.Consume(q.queue, q.tag, false, false, false, false, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, "订阅 RabbitMQ 队列失败")
	}

	log := logger.Named("rabbitmq_queue").With(slog.String("queue", q.queue))
	var wg sync.WaitGroup
	for range max(workerCount, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				q.deliver(ctx, d, handler, log)
			}
		}()
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
		return xerrors.New(xerrors.CodeQueueFailure, "RabbitMQ 订阅被服务端关闭")
	case <-ctx.Done():
	}
	// 取消订阅后 deliveries 会被关闭，协程随之退出
	if err := q.ch.Cancel(q.tag, false); err != nil {
		log.Warn("取消订阅失败", slog.Any("error", err))
	}
	<-workersDone
	return ctx.Err()
}

// deliver 处理单条消息：成功确认；可重试错误或进程退出时重新入队；其余错误丢弃。
func (q *RabbitMQQueue) deliver(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	taskID := string(d.Body)
	err := handler(ctx, taskID)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn("确认消息失败", slog.String("task_id", taskID), slog.Any("error", ackErr))
		}
		return
	}
	requeue := xerrors.RetryableError(err) || ctx.Err() != nil
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Warn("拒绝消息失败", slog.String("task_id", taskID), slog.Any("error", nackErr))
	}
	log.Debug("任务处理失败", slog.String("task_id", taskID), slog.Bool("requeue", requeue), slog.Bool("redelivered", d.Redelivered), slog.Any("error", err))
}

// Close 关闭 channel 与连接。
func (q *RabbitMQQueue) Close() error {
	if q == nil {
		return nil
	}
	var errs []error
	if q.ch != nil && !q.ch.IsClosed() {
		errs = append(errs, q.ch.Close())
	}
	if q.conn != nil && !q.conn.IsClosed() {
		errs = append(errs, q.conn.Close())
	}
	return errors.Join(errs...)
}
