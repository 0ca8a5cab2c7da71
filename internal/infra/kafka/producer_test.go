package kafka

import (
	"testing"

	"github.com/linzell/authcore/internal/infra/config"
)

func TestTopicName(t *testing.T) {
	p := &Producer{cfg: config.KafkaSettings{TopicPrefix: "authcore"}}

	if got := p.TopicName("session.revoked"); got != "authcore.session.revoked" {
		t.Errorf("TopicName = %q, want authcore.session.revoked", got)
	}
	if got := p.TopicName("authcore.session.revoked"); got != "authcore.session.revoked" {
		t.Errorf("TopicName double-prefixed: %q", got)
	}

	p.cfg.TopicPrefix = ""
	if got := p.TopicName("session.revoked"); got != "session.revoked" {
		t.Errorf("TopicName without prefix = %q", got)
	}
}
