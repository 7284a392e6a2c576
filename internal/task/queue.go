package task

import "context"

// Handler 处理一条出队的任务 ID。返回可重试错误时，支持重投的队列会重新投递该消息。
type Handler func(ctx context.Context, taskID string) error

// Producer 投递任务 ID。队列只携带 ID，任务内容始终从 Store 读取。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 以 workerCount 个并发协程消费任务，阻塞到 ctx 结束或队列关闭。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 由内存、Redis 或 RabbitMQ 实现。
type Queue interface {
	Producer
	Consumer
}

var (
	_ Queue = (*MemoryQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
	_ Queue = (*RabbitMQQueue)(nil)
)
