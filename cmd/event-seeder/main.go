// Command event-seeder generates synthetic security events against a running
// sentinel instance. Useful for exercising pattern detection and threat
// scoring in development.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/sentinel/internal/models"
)

var (
	apiURL     = flag.String("url", "http://localhost:8087", "sentinel API base URL")
	count      = flag.Int("count", 100, "Number of events to generate")
	interval   = flag.Duration("interval", 100*time.Millisecond, "Interval between events")
	eventTypes = flag.String("types", "login_attempt,suspicious_activity,rate_limit_violation,data_access,network_anomaly", "Comma-separated list of event types")
	burstMode  = flag.Bool("burst", false, "Send repeated failed logins from one source to trigger pattern detection")
)

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting event seeder:")
	log.Printf("  API URL: %s", *apiURL)
	log.Printf("  Event count: %d", *count)
	log.Printf("  Interval: %v", *interval)

	types := strings.Split(*eventTypes, ",")
	log.Printf("  Event types: %v", types)

	client := &http.Client{Timeout: 10 * time.Second}

	// One sticky source for burst mode so correlation rules fire.
	burstSource := gofakeit.IPv4Address()

	successCount := 0
	failCount := 0

	for i := 0; i < *count; i++ {
		var req models.RecordEventRequest
		if *burstMode {
			req = generateFailedLogin(burstSource)
		} else {
			req = generateEvent(models.EventType(strings.TrimSpace(types[rand.Intn(len(types))])))
		}

		if err := sendEvent(client, *apiURL, req); err != nil {
			log.Printf("Failed to send event: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d events sent", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Seeding complete:")
	log.Printf("  Success: %d events", successCount)
	log.Printf("  Failed: %d events", failCount)
}

func generateEvent(t models.EventType) models.RecordEventRequest {
	severities := []models.Severity{
		models.SeverityLow, models.SeverityLow, models.SeverityMedium,
		models.SeverityMedium, models.SeverityHigh, models.SeverityCritical,
	}

	req := models.RecordEventRequest{
		Type:     t,
		Severity: severities[rand.Intn(len(severities))],
		Source:   gofakeit.IPv4Address(),
		Metadata: map[string]interface{}{
			"username":   gofakeit.Username(),
			"user_agent": gofakeit.UserAgent(),
		},
	}

	switch t {
	case models.EventLoginAttempt:
		req.Title = "Login attempt"
		if gofakeit.Bool() {
			req.Metadata["outcome"] = "failure"
			req.Description = fmt.Sprintf("failed login for %s", req.Metadata["username"])
		} else {
			req.Metadata["outcome"] = "success"
			req.Description = fmt.Sprintf("successful login for %s", req.Metadata["username"])
		}
	case models.EventSuspiciousActivity:
		req.Title = "Suspicious activity"
		req.Description = gofakeit.HackerPhrase()
	case models.EventRateLimitViolation:
		req.Title = "Rate limit exceeded"
		req.Description = fmt.Sprintf("endpoint %s throttled", gofakeit.URL())
	case models.EventDataAccess:
		req.Title = "Data access"
		req.Description = fmt.Sprintf("read of table %s", gofakeit.Word())
	default:
		req.Title = string(t)
		req.Description = gofakeit.Sentence(8)
	}

	return req
}

func generateFailedLogin(source string) models.RecordEventRequest {
	return models.RecordEventRequest{
		Type:        models.EventLoginAttempt,
		Severity:    models.SeverityMedium,
		Title:       "Login attempt",
		Description: "failed login",
		Source:      source,
		Metadata: map[string]interface{}{
			"username": gofakeit.Username(),
			"outcome":  "failure",
		},
	}
}

func sendEvent(client *http.Client, baseURL string, req models.RecordEventRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/api/v1/events", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
