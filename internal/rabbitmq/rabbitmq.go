// Package rabbitmq consumes submission requests and publishes case results.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cutekitek/rankode-judge/internal/mappers"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/cutekitek/rankode-judge/internal/submission"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	reqQueue  = "tasks-req"
	respQueue = "task-resp"

	consumerTag    = "rankode-judge"
	reconnectDelay = 15 * time.Second
)

var ErrNotConnected = errors.New("rabbitmq is not connected")

type Judger interface {
	Run(ctx context.Context, sub *models.Submission) error
}

type RabbitMqHandlerConfig struct {
	Login        string
	Password     string
	Host         string
	Port         int
	WorkersCount int
	// downloaded sources and test data live here while judged
	DataDir string
}

type RabbitMQHandler struct {
	cfg    RabbitMqHandlerConfig
	judge  Judger
	loader *submission.Loader
	log    *slog.Logger

	mu           sync.RWMutex
	conn         *amqp.Connection
	consumerChan *amqp.Channel
	producerChan *amqp.Channel

	tasksChan chan amqp.Delivery
	listeners sync.WaitGroup
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
}

func NewRabbitMQHandler(cfg RabbitMqHandlerConfig, judge Judger, loader *submission.Loader) *RabbitMQHandler {
	if cfg.WorkersCount <= 0 {
		cfg.WorkersCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitMQHandler{
		cfg:       cfg,
		judge:     judge,
		loader:    loader,
		log:       slog.Default().With("component", "rabbitmq"),
		tasksChan: make(chan amqp.Delivery),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Publisher reports results to the response queue over this handler's
// connection.
func (r *RabbitMQHandler) Publisher() *Publisher {
	return &Publisher{h: r}
}

func (r *RabbitMQHandler) Start() error {
	if err := r.connect(); err != nil {
		return err
	}
	for i := 0; i < r.cfg.WorkersCount; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return nil
}

func (r *RabbitMQHandler) connect() error {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d", r.cfg.Login, r.cfg.Password, r.cfg.Host, r.cfg.Port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	producer, err := r.startProducer(conn)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to start producer")
	}
	consumer, deliveries, err := r.startConsumer(conn)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to start consumer")
	}

	r.mu.Lock()
	r.conn, r.producerChan, r.consumerChan = conn, producer, consumer
	r.mu.Unlock()

	r.listeners.Add(1)
	go r.listener(deliveries)

	errChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	go r.reconnect(errChan)
	return nil
}

func (r *RabbitMQHandler) reconnect(errChan <-chan *amqp.Error) {
	connErr, ok := <-errChan
	if r.closed.Load() {
		return
	}
	if ok {
		r.log.Error("connection lost", "error", connErr)
	}
	r.mu.Lock()
	r.producerChan, r.consumerChan = nil, nil
	r.mu.Unlock()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		if r.closed.Load() {
			return
		}
		err := r.connect()
		if err == nil {
			r.log.Info("reconnected")
			return
		}
		r.log.Error("failed to reconnect", "error", err)
	}
}

func (r *RabbitMQHandler) startConsumer(conn *amqp.Connection) (*amqp.Channel, <-chan amqp.Delivery, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	queue, err := channel.QueueDeclare(reqQueue, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := channel.Qos(r.cfg.WorkersCount, 0, false); err != nil {
		return nil, nil, err
	}
	deliveries, err := channel.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}
	return channel, deliveries, nil
}

func (r *RabbitMQHandler) startProducer(conn *amqp.Connection) (*amqp.Channel, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := channel.QueueDeclare(respQueue, false, false, false, false, nil); err != nil {
		return nil, err
	}
	return channel, nil
}

func (r *RabbitMQHandler) listener(deliveries <-chan amqp.Delivery) {
	defer r.listeners.Done()
	for data := range deliveries {
		select {
		case r.tasksChan <- data:
		case <-r.ctx.Done():
			data.Nack(false, true)
			return
		}
	}
}

func (r *RabbitMQHandler) worker() {
	defer r.wg.Done()

	for data := range r.tasksChan {
		var task models.SubmissionRequest
		if err := json.Unmarshal(data.Body, &task); err != nil {
			r.log.Error("invalid task message", "message", string(data.Body), "error", err)
			data.Reject(false)
			continue
		}
		r.handle(&task)
		if err := data.Ack(false); err != nil {
			r.log.Warn("failed to ack task", "submission", task.Id, "error", err)
		}
	}
}

func (r *RabbitMQHandler) handle(task *models.SubmissionRequest) {
	log := r.log.With("submission", task.Id)
	dir, err := os.MkdirTemp(r.cfg.DataDir, "submission-")
	if err != nil {
		log.Error("failed to create data dir", "error", err)
		r.fail(task.Id, "failed to create data dir")
		return
	}
	defer os.RemoveAll(dir)

	sub, err := r.loader.Load(r.ctx, task, dir)
	if err != nil {
		log.Error("failed to load submission", "error", err)
		r.fail(task.Id, err.Error())
		return
	}
	start := time.Now()
	if err := r.judge.Run(r.ctx, sub); err != nil {
		log.Error("judging failed", "error", err)
		return
	}
	log.Info("submission judged", "cases", len(sub.TestCases), "elapsed", time.Since(start))
}

func (r *RabbitMQHandler) fail(submissionId, msg string) {
	res := models.CaseResult{Case: models.CompileCase, Verdict: models.SystemError(msg)}
	if err := r.publish(context.Background(), mappers.CaseResultToMessage(submissionId, res)); err != nil {
		r.log.Error("failed to send response to queue", "error", err)
	}
}

func (r *RabbitMQHandler) publish(ctx context.Context, msg *models.ResultMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.producerChan == nil {
		return ErrNotConnected
	}
	err = r.producerChan.PublishWithContext(ctx, "", respQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	return errors.Wrap(err, "failed to publish result")
}

// Close stops consuming, lets workers finish the submissions in progress and
// closes the connection.
func (r *RabbitMQHandler) Close() {
	if r.closed.Swap(true) {
		return
	}
	r.mu.RLock()
	consumer := r.consumerChan
	r.mu.RUnlock()
	if consumer != nil {
		if err := consumer.Cancel(consumerTag, false); err != nil {
			r.log.Warn("failed to cancel consumer", "error", err)
		}
	}
	r.listeners.Wait()
	close(r.tasksChan)
	r.wg.Wait()
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

type Publisher struct {
	h *RabbitMQHandler
}

func (p *Publisher) Report(ctx context.Context, submissionId string, res models.CaseResult) error {
	return p.h.publish(ctx, mappers.CaseResultToMessage(submissionId, res))
}
