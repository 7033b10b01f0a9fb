package application

import (
	"github.com/redis/go-redis/v9"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/config"
)

// NewBroker binds the extraction queue described by conf to rdb. The web
// server and the worker must agree on prefix and queue name.
func NewBroker(rdb redis.UniversalClient, conf config.Config) *broker.Broker {
	return broker.New(rdb, broker.Options{
		Prefix:        conf.Broker.Prefix,
		Queue:         conf.Broker.Queue,
		KeepCompleted: conf.Broker.KeepCompleted,
		KeepFailed:    conf.Broker.KeepFailed,
	})
}
