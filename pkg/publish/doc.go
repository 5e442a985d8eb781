// Package publish forwards trace events to message brokers.
//
// A Fanout implements log.Logger, so it can be handed to the stack and the
// application next to the trace file logger. Log never blocks: events are
// queued and a single worker publishes them to every configured Publisher.
// When the queue is full the event is dropped and counted.
//
// Publishers exist for MQTT (github.com/eclipse/paho.mqtt.golang), Kafka
// (github.com/segmentio/kafka-go) and Redis/Valkey
// (github.com/redis/go-redis/v9). Every publisher sends the JSON form of
// an event, Message.
package publish
