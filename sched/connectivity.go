package sched

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GNHua/oneclaw-sub005/internal/httpclient"
)

const (
	probeTimeout   = 5 * time.Second
	probeCacheTTL  = 30 * time.Second
	probeUserAgent = "tasker-connectivity-probe"
)

// ProbeChecker reports connectivity by issuing a HEAD request against a
// well-known endpoint. Results are cached briefly so a burst of periodic
// fires does not turn into a burst of probes.
type ProbeChecker struct {
	client *httpclient.SaferClient
	url    string
	log    *zap.SugaredLogger

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

// NewProbeChecker creates a checker probing the given URL.
func NewProbeChecker(url string, log *zap.SugaredLogger) *ProbeChecker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ProbeChecker{
		client: httpclient.NewSaferClient(probeTimeout),
		url:    url,
		log:    log,
	}
}

func (p *ProbeChecker) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checkedAt) < probeCacheTTL {
		return p.online
	}

	p.online = p.probe()
	p.checkedAt = time.Now()
	return p.online
}

func (p *ProbeChecker) probe() bool {
	req, err := http.NewRequest(http.MethodHead, p.url, nil)
	if err != nil {
		p.log.Warnw("Invalid connectivity probe URL", "url", p.url, "error", err)
		return false
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debugw("Connectivity probe failed", "url", p.url, "error", err)
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
