package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL    string
	AuthToken     string
	AuthTokenFile string
	HTTPTimeout   time.Duration

	BreakerMaxFailures int
	BreakerCooldown    time.Duration

	KafkaBrokers        []string
	CheckoutEventsTopic string

	OTLPEndpoint string
	Port         string

	PaymentKeyID string
	JWTSecret    string
}

func Load() Config {
	return Config{
		APIBaseURL:    strings.TrimRight(get("API_BASE_URL", ""), "/"),
		AuthToken:     get("AUTH_TOKEN", ""),
		AuthTokenFile: get("AUTH_TOKEN_FILE", ""),
		HTTPTimeout:   getDuration("HTTP_TIMEOUT", 10*time.Second),

		BreakerMaxFailures: getInt("BREAKER_MAX_FAILURES", 5),
		BreakerCooldown:    getDuration("BREAKER_COOLDOWN", 30*time.Second),

		KafkaBrokers:        getList("KAFKA_BROKERS"),
		CheckoutEventsTopic: get("CHECKOUT_EVENTS_TOPIC", "checkout.events"),

		OTLPEndpoint: get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Port:         get("PORT", "8080"),

		PaymentKeyID: get("PAYMENT_KEY_ID", ""),
		JWTSecret:    get("JWT_SECRET", "greeneye-dev-secret"),
	}
}

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(get(k, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getList(k string) []string {
	var out []string
	for _, part := range strings.Split(get(k, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
