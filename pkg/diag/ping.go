// pkg/diag/ping.go
package diag

import (
	"context"
	"fmt"
	"time"

	//nolint:staticcheck // Ignore staticcheck warning for this import
	"github.com/go-ping/ping"
)

// Pinger is an interface for the ping library.
type Pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics

	SetPrivileged(bool)
	SetCount(int)
	SetInterval(time.Duration)
	SetTimeout(time.Duration)
}

type pingerFactoryFunc func(host string) (Pinger, error)

// PingCheck verifies an engine host answers ICMP echo. Unprivileged UDP
// pings are the default so the doctor works without root; hosts that drop
// ICMP make this a warning, not a failure, since the HTTP check is the
// authoritative one.
type PingCheck struct {
	Label      string
	Host       string
	Count      int
	Interval   time.Duration
	Timeout    time.Duration
	Privileged bool

	pingerFactory pingerFactoryFunc // swapped in tests
}

func (c *PingCheck) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return "ping " + c.Host
}

func (c *PingCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	factory := c.pingerFactory
	if factory == nil {
		factory = func(host string) (Pinger, error) {
			p, err := ping.NewPinger(host)
			if err != nil {
				return nil, err
			}
			return &realPingerAdapter{p: p}, nil
		}
	}

	pinger, err := factory(c.Host)
	if err != nil {
		result.Status = StatusFail
		result.Detail = fmt.Sprintf("resolve %s: %v", c.Host, err)
		return result
	}

	count := c.Count
	if count < 1 {
		count = 1
	}
	interval := c.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	pinger.SetPrivileged(c.Privileged)
	pinger.SetCount(count)
	pinger.SetInterval(interval)
	pinger.SetTimeout(timeout)

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case <-ctx.Done():
		pinger.Stop()
		<-done
		result.Status = StatusFail
		result.Detail = ctx.Err().Error()
		return result
	case err := <-done:
		if err != nil {
			result.Status = StatusWarn
			result.Detail = fmt.Sprintf("ping failed: %v", err)
			return result
		}
	}

	stats := pinger.Statistics()
	if stats == nil || stats.PacketsRecv == 0 {
		result.Status = StatusWarn
		result.Detail = fmt.Sprintf("no echo reply from %s (host may drop ICMP)", c.Host)
		return result
	}

	result.Status = StatusOK
	result.Detail = fmt.Sprintf("%d/%d replies, avg rtt %s", stats.PacketsRecv, stats.PacketsSent, stats.AvgRtt.Round(time.Microsecond))
	return result
}

type realPingerAdapter struct {
	p *ping.Pinger
}

func (r *realPingerAdapter) Run() error                   { return r.p.Run() }
func (r *realPingerAdapter) Stop()                        { r.p.Stop() }
func (r *realPingerAdapter) Statistics() *ping.Statistics { return r.p.Statistics() }

func (r *realPingerAdapter) SetPrivileged(v bool)        { r.p.SetPrivileged(v) }
func (r *realPingerAdapter) SetCount(c int)              { r.p.Count = c }
func (r *realPingerAdapter) SetInterval(i time.Duration) { r.p.Interval = i }
func (r *realPingerAdapter) SetTimeout(t time.Duration)  { r.p.Timeout = t }
