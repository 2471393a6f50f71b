// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package health implements the liveness probe behind the image's
// HEALTHCHECK command.
package health

import (
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const healthPath = "/healthz"

// Prober polls the workflow server's liveness endpoint.
type Prober struct {
	Host     string
	Port     string
	Timeout  time.Duration // per-attempt HTTP deadline
	Interval time.Duration // pause between attempts
	Attempts int
}

// URL returns the probed endpoint. A wildcard bind address is probed over
// loopback.
func (p *Prober) URL() string {
	host := p.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, p.Port), healthPath)
}

// Probe performs up to Attempts GET requests against the liveness endpoint
// and returns nil on the first 2xx response.
func (p *Prober) Probe() error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	client := &http.Client{Timeout: p.Timeout}
	url := p.URL()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = probeOnce(client, url)
		if lastErr == nil {
			return nil
		}

		log.WithError(lastErr).WithField("attempt", attempt).Debug("Health probe failed")

		if attempt < attempts {
			time.Sleep(p.Interval)
		}
	}

	return fmt.Errorf("server not healthy after %d attempt(s): %w", attempts, lastErr)
}

func probeOnce(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
