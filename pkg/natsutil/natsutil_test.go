package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestHeaderCarrierSetGet(t *testing.T) {
	msg := &nats.Msg{Subject: "test"}
	c := (*headerCarrier)(msg)

	if c.Get("traceparent") != "" {
		t.Error("empty carrier should return empty values")
	}
	if c.Keys() != nil {
		t.Error("empty carrier should have no keys")
	}

	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get = %q", got)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Error("Set must write through to the message headers")
	}

	c.Set("tracestate", "vendor=1")
	keys := c.Keys()
	if len(keys) != 2 {
		t.Errorf("Keys = %v", keys)
	}
}

func TestHeaderCarrierOverwrite(t *testing.T) {
	msg := &nats.Msg{}
	c := (*headerCarrier)(msg)
	c.Set("k", "v1")
	c.Set("k", "v2")
	if got := c.Get("k"); got != "v2" {
		t.Errorf("Get after overwrite = %q", got)
	}
}
