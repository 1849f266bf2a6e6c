// Command ccheck implements the consistency checker redis cluster client
// as described in http://redis.io/topics/cluster-tutorial. It is used
// to test the redisc package with real cluster failover and resharding
// situations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/joomcode/errorx"
	"github.com/slotroute/redisc"
)

var (
	addrFlag = flag.String("addr", "localhost:7000", "Redis server `address`.")

	connTimeoutFlag  = flag.Duration("c", time.Second, "Connection `timeout`.")
	delayFlag        = flag.Duration("d", 0, "Delay `duration` between INCR calls.")
	readTimeoutFlag  = flag.Duration("r", 100*time.Millisecond, "Read `timeout`.")
	writeTimeoutFlag = flag.Duration("w", 100*time.Millisecond, "Write `timeout`.")

	retriesFlag    = flag.Int("retries", 4, "Maximum `number` of retries on redirections.")
	retryDelayFlag = flag.Duration("retry-delay", 100*time.Millisecond, "Delay `duration` before retrying a TRYAGAIN error.")
)

const (
	workingSet = 1000
	keySpace   = 10000
)

type stats struct {
	mu sync.Mutex

	writes, reads             int
	failedWrites, failedReads int
	lostWrites, noAckWrites   int
}

func (s *stats) add(w, r, fw, fr, lw, naw int) {
	s.mu.Lock()
	s.writes += w
	s.reads += r
	s.failedWrites += fw
	s.failedReads += fr
	s.lostWrites += lw
	s.noAckWrites += naw
	s.mu.Unlock()
}

func (s *stats) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d R (%d err) | %d W (%d err) | %d lost | %d noack",
		s.reads, s.failedReads, s.writes, s.failedWrites, s.lostWrites, s.noAckWrites)
}

func main() {
	flag.Parse()

	cluster := &redisc.Cluster{
		StartupNodes: []string{*addrFlag},
		DialOptions: []redis.DialOption{
			redis.DialConnectTimeout(*connTimeoutFlag),
			redis.DialReadTimeout(*readTimeoutFlag),
			redis.DialWriteTimeout(*writeTimeoutFlag),
		},
		Retries: redisc.MaxRetries(*retriesFlag),
		Backoff: redisc.ConstantBackoff(*retryDelayFlag),
		Name:    "ccheck",
	}
	defer cluster.Close()

	if err := cluster.Refresh(context.Background()); err != nil {
		log.Fatalf("failed to load the slot mapping: %v", err)
	}

	var st stats
	errCh := make(chan error, 1)
	go printStats(&st)
	go printErr(errCh)

	runChecks(context.Background(), cluster, &st, errCh, *delayFlag)
}

func runChecks(ctx context.Context, cluster *redisc.Cluster, st *stats, errCh chan<- error, delay time.Duration) {
	cache := make(map[string]int, workingSet)
	for ctx.Err() == nil {
		var r, w, fr, fw, lw, naw int

		key := genKey()

		// read only if we know what that key should be
		if exp, ok := cache[key]; ok {
			v, err := redis.Int(cluster.Do(ctx, "GET", key))
			if err != nil {
				if closed(err) {
					return
				}
				report(errCh, fmt.Errorf("read from slot %d failed: %v", redisc.Slot(key), err))
				fr = 1
			} else {
				r = 1
				if exp > v {
					lw = exp - v
				} else if exp < v {
					naw = v - exp
				}
			}
		}

		// write
		v, err := redis.Int(cluster.Do(ctx, "INCR", key))
		if err != nil {
			if closed(err) {
				return
			}
			report(errCh, fmt.Errorf("write to slot %d failed: %v", redisc.Slot(key), err))
			fw = 1
		} else {
			w = 1
			cache[key] = v
		}

		st.add(w, r, fw, fr, lw, naw)
		time.Sleep(delay)
	}
}

func closed(err error) bool {
	return errorx.IsOfType(err, redisc.ErrClosed)
}

// report sends err to errCh unless an error is already pending.
func report(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func printErr(errCh <-chan error) {
	for err := range errCh {
		fmt.Println(err)
		time.Sleep(time.Second)
	}
}

// each second, print stats
func printStats(st *stats) {
	for range time.Tick(time.Second) {
		fmt.Println(st)
	}
}

func genKey() string {
	ks := workingSet
	if rand.Float64() > 0.5 {
		ks = keySpace
	}
	return "key_" + strconv.Itoa(rand.Intn(ks))
}
