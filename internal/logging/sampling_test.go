package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       time.Minute,
		Initial:    1,
		Thereafter: 0,
	})

	for i := 0; i < 5; i++ {
		entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "noisy"}
		if ce := sampled.Check(entry, nil); ce != nil {
			ce.Write()
		}
		entry = zapcore.Entry{Level: zapcore.ErrorLevel, Message: "failure"}
		if ce := sampled.Check(entry, nil); ce != nil {
			ce.Write()
		}
	}

	assert.Equal(t, 1, observed.FilterMessage("noisy").Len())
	assert.Equal(t, 5, observed.FilterMessage("failure").Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}
