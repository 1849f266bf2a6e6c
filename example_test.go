package redisc_test

import (
	"context"
	"log"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/slotroute/redisc"
)

// Create and use a cluster.
func Example() {
	// create the cluster
	cluster := redisc.Cluster{
		StartupNodes: []string{":7000", ":7001", ":7002"},
		DialOptions:  []redis.DialOption{redis.DialConnectTimeout(5 * time.Second)},
		Retries:      redisc.MaxRetries(3),
		Backoff:      redisc.ExponentialBackoff(10*time.Millisecond, time.Second),
	}
	defer cluster.Close()

	ctx := context.Background()

	// initialize its mapping
	if err := cluster.Refresh(ctx); err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	// call commands on it
	s, err := redis.String(cluster.Do(ctx, "GET", "some-key"))
	if err != nil {
		log.Fatalf("GET failed: %v", err)
	}
	log.Println(s)

	_, err = cluster.Do(ctx, "SET", "some-key", 2)
	if err != nil {
		if redisc.IsTryAgain(err) {
			log.Fatalf("SET failed, resharding in progress: %v", err)
		}
		log.Fatalf("SET failed: %v", err)
	}

	// use the redigo interface
	conn := cluster.Conn()
	defer conn.Close()
	n, err := redis.Int(conn.Do("INCR", "counter"))
	if err != nil {
		log.Fatalf("INCR failed: %v", err)
	}
	log.Println(n)
}
