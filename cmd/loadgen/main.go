package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cutekitek/rankode-judge/internal/config"
	"github.com/cutekitek/rankode-judge/internal/repository/models"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	requestQueueName  = "tasks-req"
	responseQueueName = "task-resp"

	publisherCount = 10
	publishDelay   = 10 * time.Millisecond
)

const program = `#include <stdio.h>
int main(void) {
	long a, b;
	if (scanf("%ld %ld", &a, &b) != 2) return 1;
	printf("%ld\n", a + b);
	return 0;
}
`

func failOnError(err error, msg string) {
	if err != nil {
		log.Fatalf("%s: %s", msg, err)
	}
}

func newTask() models.SubmissionRequest {
	return models.SubmissionRequest{
		Id:          uuid.NewString(),
		Language:    "c",
		Code:        program,
		TimeLimit:   1000,
		MemoryLimit: 65536,
		TestCases: []models.TestCaseRequest{
			{InputFile: "sum/1.in", OutputFile: "sum/1.out"},
			{InputFile: "sum/2.in", OutputFile: "sum/2.out"},
			{InputFile: "sum/3.in", OutputFile: "sum/3.out"},
		},
	}
}

func publisher(wg *sync.WaitGroup, ch *amqp091.Channel, done <-chan struct{}) {
	defer wg.Done()

	for {
		select {
		case <-done:
			return
		case <-time.After(publishDelay):
		}
		body, err := json.Marshal(newTask())
		failOnError(err, "Failed to marshal task")
		err = ch.PublishWithContext(context.Background(), "", requestQueueName, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			log.Printf("Failed to publish a message: %s", err)
		}
	}
}

// consumer counts results per second and verdicts seen so far.
func consumer(ch *amqp091.Channel, done <-chan struct{}) {
	msgs, err := ch.Consume(responseQueueName, "", true, false, false, false, nil)
	failOnError(err, "Failed to register a consumer")

	var count int
	verdicts := make(map[string]int)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("verdicts: %v", verdicts)
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			count++
			var res models.ResultMessage
			if err := json.Unmarshal(msg.Body, &res); err != nil {
				verdicts["invalid"]++
				continue
			}
			verdicts[res.Result]++
		case <-ticker.C:
			log.Printf("Received %d results/sec", count)
			count = 0
		}
	}
}

func main() {
	cfg, err := config.NewConfig()
	failOnError(err, "Failed to read config")

	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.RabbitMQUser, cfg.RabbitMQPassword, cfg.RabbitMQHost, cfg.RabbitMQPort)
	conn, err := amqp091.Dial(url)
	failOnError(err, "Failed to connect to RabbitMQ")
	defer conn.Close()

	ch, err := conn.Channel()
	failOnError(err, "Failed to open a channel")
	defer ch.Close()

	_, err = ch.QueueDeclare(requestQueueName, false, false, false, false, nil)
	failOnError(err, "Failed to declare request queue")
	_, err = ch.QueueDeclare(responseQueueName, false, false, false, false, nil)
	failOnError(err, "Failed to declare response queue")

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < publisherCount; i++ {
		wg.Add(1)
		go publisher(&wg, ch, done)
	}
	log.Printf("Started %d publishers", publisherCount)

	consumerDone := make(chan struct{})
	go func() {
		consumer(ch, done)
		close(consumerDone)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	close(done)
	wg.Wait()
	<-consumerDone
}
