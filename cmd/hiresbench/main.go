package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"hirestimer/pkg/hiresclient"
	"hirestimer/pkg/hrtime"
)

// Sleep-lag ladder: short delays show quantization to the OS timer
// period, longer ones show accumulated coarseness.
var delaysMS = []int64{1, 2, 3, 5, 8, 10, 12, 15, 20, 25, 30}

type sample struct {
	requested time.Duration
	actual    time.Duration
}

func (s sample) lag() time.Duration { return s.actual - s.requested }

func measure(rounds int) []sample {
	var out []sample
	for r := 0; r < rounds; r++ {
		for _, ms := range delaysMS {
			d := time.Duration(ms) * time.Millisecond
			start := time.Now()
			time.Sleep(d)
			out = append(out, sample{requested: d, actual: time.Since(start)})
		}
	}
	return out
}

func report(label string, samples []sample) time.Duration {
	var total, worst time.Duration
	for _, s := range samples {
		total += s.lag()
		if s.lag() > worst {
			worst = s.lag()
		}
	}
	mean := total / time.Duration(len(samples))

	fmt.Printf("\n-- %s --\n", label)
	for _, s := range samples[:len(delaysMS)] {
		fmt.Printf("sleep(%v) -> %v  lag %v\n", s.requested, s.actual.Round(time.Microsecond), s.lag().Round(time.Microsecond))
	}
	fmt.Printf("samples=%d mean_lag=%v worst_lag=%v\n", len(samples), mean.Round(time.Microsecond), worst.Round(time.Microsecond))
	return mean
}

func main() {
	var (
		request = flag.Duration("request", time.Millisecond, "resolution to request for the elevated pass")
		rounds  = flag.Int("rounds", 3, "passes over the delay ladder")
		url     = flag.String("url", "", "acquire through a hirestimed daemon instead of in-process")
		ttl     = flag.Duration("ttl", 10*time.Second, "remote lease TTL (with -url)")
	)
	flag.Parse()

	fmt.Println("================= hiresbench =================")
	fmt.Printf("Request:  %v (class %v)\n", *request, hrtime.FromDuration(*request))
	fmt.Printf("Rounds:   %d\n", *rounds)

	baseline := measure(*rounds)

	var elevated []sample
	if *url != "" {
		ctx := context.Background()
		c := hiresclient.New(*url, nil)
		h, err := c.Acquire(ctx, *request, *ttl)
		if err != nil {
			fmt.Printf("remote acquire failed: %v\n", err)
			return
		}
		hbCtx, cancel := context.WithCancel(ctx)
		errCh := c.StartHeartbeat(hbCtx, h, hiresclient.HeartbeatOptions{
			Interval: *ttl / 3,
			ExtendBy: *ttl,
		})
		elevated = measure(*rounds)
		cancel()
		<-errCh
		if _, err := c.Release(ctx, h); err != nil {
			fmt.Printf("remote release failed: %v\n", err)
		}
	} else {
		h := hrtime.Request(*request)
		elevated = measure(*rounds)
		h.Release()
	}

	meanBase := report("baseline", baseline)
	meanElev := report("elevated", elevated)

	fmt.Println("\n----------------------------------------------")
	if meanElev < meanBase {
		fmt.Printf("Improvement:   %v -> %v mean lag\n", meanBase.Round(time.Microsecond), meanElev.Round(time.Microsecond))
	} else {
		fmt.Println("No improvement (platform may already run at high resolution)")
	}
	fmt.Println("==============================================")
}
