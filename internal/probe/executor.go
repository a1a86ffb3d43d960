// Package probe implements the probe executor (component G): bounded-
// concurrency outbound HTTP with DNS-then-connect separation and an SSRF
// guard, producing a structured CheckResult row per probe.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/clock"
	"github.com/hamed0406/uptimechecker/internal/domain"
)

// Executor runs one probe at a time per call; the caller (the scheduler's
// bounded worker pool) enforces MAX_CONCURRENT_HEALTH_CHECKS.
type Executor struct {
	NodeID   uuid.UUID
	SelfIP   string
	Resolver *net.Resolver
	Log      *zap.Logger

	// allowLoopbackForTest disables the loopback branch of the SSRF guard.
	// It exists only so package-internal tests can exercise the HTTP path
	// against an httptest.Server, which always binds to 127.0.0.1; the
	// guard itself is covered exhaustively in guard_test.go.
	allowLoopbackForTest bool
}

func NewExecutor(nodeID uuid.UUID, selfIP string, log *zap.Logger) *Executor {
	return &Executor{
		NodeID:   nodeID,
		SelfIP:   selfIP,
		Resolver: net.DefaultResolver,
		Log:      log,
	}
}

// Execute performs the probe procedure end to end and returns the
// CheckResult row ready for the result writer. clk is used only to measure
// response_time_micros; scheduledAtMicros is the theoretical due time from
// the scheduler, never wall time.
func (e *Executor) Execute(ctx context.Context, check domain.Check, region domain.Region, scheduledAtMicros uint64, clk clock.Clock) domain.CheckResult {
	base := domain.CheckResult{
		CheckID:           check.CheckID,
		Region:            region,
		TimeBucketMicros:  domain.Align(scheduledAtMicros, domain.TimeBucketWidthMicros),
		ScheduledAtMicros: scheduledAtMicros,
		ExecutorNodeID:    e.NodeID,
	}

	timeout := time.Duration(check.TimeoutSeconds) * time.Second
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 1. Parse URL
	u, err := url.Parse(check.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		base.Outcome = domain.OutcomeInternal
		return base
	}

	// 2. DNS resolution, timeout min(5s, check.timeout)
	dnsTimeout := timeout
	if dnsTimeout > 5*time.Second {
		dnsTimeout = 5 * time.Second
	}
	dctx, dcancel := context.WithTimeout(ctx, dnsTimeout)
	ips, err := e.Resolver.LookupIP(dctx, "ip", u.Hostname())
	dcancel()
	if err != nil || len(ips) == 0 {
		base.Outcome = domain.OutcomeDNSFail
		return base
	}

	// 3. SSRF guard
	var accepted net.IP
	for _, ip := range ips {
		if e.allowLoopbackForTest && ip.IsLoopback() {
			accepted = ip
			break
		}
		if isPrivateIP(ip) || selfIPBlocked(ip, e.SelfIP) {
			continue
		}
		accepted = ip
		break
	}
	if accepted == nil {
		base.Outcome = domain.OutcomeBlockedPrivate
		base.ResponseTimeMicros = 0
		return base
	}

	// 4. HTTP request to the accepted, already-resolved address. A dial
	// override pins the connection to it without re-resolving DNS, the Go
	// equivalent of rewriting the URL to the validated address.
	client := e.clientFor(accepted, u.Hostname(), timeout)

	var bodyReader io.Reader
	if len(check.RequestBody) > 0 {
		bodyReader = bytes.NewReader(check.RequestBody)
	}
	req, err := http.NewRequestWithContext(cctx, string(check.HTTPMethod), check.URL, bodyReader)
	if err != nil {
		base.Outcome = domain.OutcomeInternal
		return base
	}
	for k, v := range check.RequestHeaders {
		req.Header.Set(k, v)
	}

	start := clk.MonotonicMicros()
	resp, err := client.Do(req)
	if err != nil {
		base.Outcome = classifyTransportError(err)
		return base
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)); err != nil {
		base.Outcome = domain.OutcomeBodyReadFail
		base.ResponseTimeMicros = clk.MonotonicMicros() - start
		return base
	}
	elapsed := clk.MonotonicMicros() - start

	status := resp.StatusCode
	base.ObservedStatus = &status
	base.ResponseTimeMicros = elapsed
	if status == check.ExpectedStatusCode {
		base.Outcome = domain.OutcomeOK
	} else {
		base.Outcome = domain.OutcomeStatusMismatch
	}
	return base
}

// clientFor builds an http.Client whose Transport dials exactly ip for
// every connection, restoring the original Host header so virtual-hosted
// targets still route correctly. Redirects are never followed.
func (e *Executor) clientFor(ip net.IP, host string, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				port = "80"
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		},
		TLSClientConfig: &tls.Config{ServerName: host},
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func classifyTransportError(err error) domain.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.OutcomeTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tls") || strings.Contains(msg, "certificate") || strings.Contains(msg, "x509") {
		return domain.OutcomeTLSFail
	}
	return domain.OutcomeConnFail
}
