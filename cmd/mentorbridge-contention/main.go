// Command mentorbridge-contention races conflicting status changes on many
// bookings at once and checks that every booking ends with exactly one
// winner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mentorbridge/mentorbridge/booking"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/redis/go-redis/v9"
)

const (
	studentID = "contention-student"
	mentorID  = "contention-mentor"
)

type staticDirectory map[string]permission.Role

func (d staticDirectory) LookupRole(_ context.Context, userID string) (permission.Role, error) {
	role, ok := d[userID]
	if !ok {
		return "", booking.ErrUnknownUser
	}
	return role, nil
}

type attempt struct {
	actor  booking.Actor
	target booking.Status
}

// racers are the pending-state edges that contend with each other.
var racers = []attempt{
	{booking.Actor{UserID: mentorID, Role: permission.RoleMentor}, booking.StatusConfirmed},
	{booking.Actor{UserID: mentorID, Role: permission.RoleMentor}, booking.StatusCancelled},
	{booking.Actor{UserID: studentID, Role: permission.RoleStudent}, booking.StatusCancelled},
}

type outcome struct {
	wins      int
	conflicts int
	invalid   int
	other     []error
}

func main() {
	var (
		bookings    = flag.Int("bookings", 2000, "number of bookings to race on")
		concurrency = flag.Int("concurrency", 64, "bookings raced at the same time")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "contention", "booking key prefix")
	)
	flag.Parse()

	if *bookings <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "bookings and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	machine, err := booking.NewMachine(
		booking.NewRedisStore(client, *prefix),
		staticDirectory{studentID: permission.RoleStudent, mentorID: permission.RoleMentor},
		booking.DefaultPolicy(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "machine: %v\n", err)
		os.Exit(1)
	}

	ids, err := seed(ctx, machine, *bookings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	results, latencies, total := race(ctx, machine, ids, *concurrency)

	fmt.Println("---- results ----")
	printStats("transition", computeStats(total, latencies))
	if violations := report(results); violations > 0 {
		fmt.Fprintf(os.Stderr, "%d bookings did not have exactly one winner\n", violations)
		os.Exit(1)
	}
	fmt.Println("ok: every booking had exactly one winner")
}

func seed(ctx context.Context, m *booking.Machine, n int) ([]string, error) {
	student := booking.Actor{UserID: studentID, Role: permission.RoleStudent}
	ids := make([]string, 0, n)

	fmt.Printf("seeding %d bookings...\n", n)
	start := time.Now()
	for i := 0; i < n; i++ {
		b, err := m.Create(ctx, student, booking.CreateRequest{
			MentorID: mentorID,
			Date:     "2030-01-01",
			Time:     "10:00",
			Notes:    fmt.Sprintf("contention %d", i),
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, b.ID)
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return ids, nil
}

// race fires every racer at each booking together. Up to concurrency
// bookings are in flight at once.
func race(ctx context.Context, m *booking.Machine, ids []string, concurrency int) ([]outcome, []time.Duration, time.Duration) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, len(ids)*len(racers))
		results   = make([]outcome, len(ids))
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(ids) {
					return
				}
				res, samples := raceOne(ctx, m, ids[i])
				results[i] = res
				mu.Lock()
				latencies = append(latencies, samples...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results, latencies, time.Since(start)
}

func raceOne(ctx context.Context, m *booking.Machine, id string) (outcome, []time.Duration) {
	var (
		wg      sync.WaitGroup
		startCh = make(chan struct{})
		errs    = make([]error, len(racers))
		samples = make([]time.Duration, len(racers))
	)
	for j, a := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startCh
			t0 := time.Now()
			_, errs[j] = m.Transition(ctx, id, a.actor, a.target)
			samples[j] = time.Since(t0)
		}()
	}
	close(startCh)
	wg.Wait()

	var out outcome
	for _, err := range errs {
		switch {
		case err == nil:
			out.wins++
		case errors.Is(err, booking.ErrConflict):
			out.conflicts++
		case errors.Is(err, booking.ErrInvalidTransition):
			out.invalid++
		default:
			out.other = append(out.other, err)
		}
	}
	return out, samples
}

func report(results []outcome) int {
	var wins, conflicts, invalid, other, violations int
	for _, r := range results {
		wins += r.wins
		conflicts += r.conflicts
		invalid += r.invalid
		other += len(r.other)
		if r.wins != 1 || len(r.other) > 0 {
			violations++
		}
	}
	fmt.Printf("bookings=%d wins=%d conflicts=%d invalid_transitions=%d other_errors=%d\n",
		len(results), wins, conflicts, invalid, other)
	return violations
}

type phaseStats struct {
	total   time.Duration
	ops     int
	p50     time.Duration
	p95     time.Duration
	p99     time.Duration
	opsPerS float64
}

func computeStats(total time.Duration, samples []time.Duration) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
